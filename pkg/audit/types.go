package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/validate"
)

// Source identifies the surface that ran a validation.
type Source string

const (
	SourceHTTP Source = "http"
	SourceGRPC Source = "grpc"
	SourceCLI  Source = "cli"
)

// Event records the outcome of one validation.
type Event struct {
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
	RequestID string    `json:"request_id,omitempty"`
	// Method is the gRPC full method or HTTP route that carried the message.
	Method     string              `json:"method,omitempty"`
	Message    string              `json:"message"`
	Mode       string              `json:"mode"`
	Outcome    string              `json:"outcome"`
	Violations validate.Violations `json:"violations,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// NewEvent builds an event from a validation result. The outcome is derived
// from violations and err the same way the metrics label it.
func NewEvent(ctx context.Context, source Source, method, message string, mode validate.Mode, violations validate.Violations, err error) *Event {
	event := &Event{
		Timestamp:  time.Now().UTC(),
		Source:     source,
		RequestID:  observability.GetRequestID(ctx),
		Method:     method,
		Message:    message,
		Mode:       mode.String(),
		Outcome:    observability.OutcomeValid,
		Violations: violations,
	}

	switch {
	case err != nil:
		event.Outcome = observability.OutcomeError
		event.Error = err.Error()
	case len(violations) > 0:
		event.Outcome = observability.OutcomeInvalid
	}

	return event
}

// Rejected reports whether the event describes a failed validation.
func (e *Event) Rejected() bool {
	return e.Outcome != observability.OutcomeValid
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Message string
	Outcome string
	Since   time.Time
	Limit   int
}
