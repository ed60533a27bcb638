package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Logger is the interface for audit sinks.
type Logger interface {
	// Log persists one event.
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the sink.
	Close() error
}

// Store is a Logger that can be queried.
type Store interface {
	Logger
	Query(ctx context.Context, filter Filter) ([]*Event, error)
}

// NoOp returns a logger that discards every event.
func NoOp() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(context.Context, *Event) error { return nil }
func (noOpLogger) Close() error                      { return nil }

// Recorder writes rejected validations to a sink. Sink failures are logged
// and never surface to the caller being validated.
type Recorder struct {
	sink       Logger
	logger     logrus.FieldLogger
	recordPass bool
}

// NewRecorder creates a recorder. A nil sink records nothing; recordPass
// also keeps successful validations.
func NewRecorder(sink Logger, logger logrus.FieldLogger, recordPass bool) *Recorder {
	if sink == nil {
		sink = NoOp()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Recorder{sink: sink, logger: logger, recordPass: recordPass}
}

// Record logs event when it is rejected or when passes are recorded.
func (r *Recorder) Record(ctx context.Context, event *Event) {
	if r == nil || (!event.Rejected() && !r.recordPass) {
		return
	}
	if err := r.sink.Log(ctx, event); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"message": event.Message,
			"outcome": event.Outcome,
		}).Warn("Failed to write audit event")
	}
}

// Close closes the underlying sink.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.sink.Close()
}
