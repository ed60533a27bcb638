package validate

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Configuration errors. These indicate a wiring or rule-authoring defect,
// never bad input data.
var (
	// ErrValidatorNotFound is returned when a message type reachable from the
	// validated message has no validator in the registry.
	ErrValidatorNotFound = errors.New("no validator registered for message type")
	// ErrKindMismatch is returned when a field value cannot be compared with
	// the bound declared for it.
	ErrKindMismatch = errors.New("field kind does not match constraint")
	// ErrMaxDepthExceeded is returned when nested messages go deeper than the
	// engine's depth limit.
	ErrMaxDepthExceeded = errors.New("maximum validation depth exceeded")
	// ErrUnknownField is returned when rules reference a field the message
	// descriptor does not declare.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownFormat is returned for a string format with no registered checker.
	ErrUnknownFormat = errors.New("unknown string format")
	// ErrInvalidRule is returned for a malformed constraint declaration.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrNilMessage is returned when Validate is called without a message.
	ErrNilMessage = errors.New("nil message")
)

// Registry lifecycle errors.
var (
	ErrRegistrySealed     = errors.New("registry is sealed")
	ErrDuplicateValidator = errors.New("validator already registered")
)

// ConfigError reports an engine fault. It is kept apart from Violations so
// callers can tell a broken setup from invalid data.
type ConfigError struct {
	// Type is the message type being validated when the fault occurred.
	Type protoreflect.FullName
	// Field is the fully qualified field path, if the fault is tied to a field.
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("validate: configuration error")
	if e.Type != "" {
		fmt.Fprintf(&b, " in %s", e.Type)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " at %s", e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// errHalt stops the traversal once fail-fast mode has recorded a violation.
var errHalt = errors.New("validate: halted after first violation")
