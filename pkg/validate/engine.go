package validate

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// DefaultMaxDepth bounds message nesting when no WithMaxDepth option is given.
const DefaultMaxDepth = 64

// Mode selects how violations are collected.
type Mode uint8

const (
	// FailFast stops at the first violation.
	FailFast Mode = iota
	// AccumulateAll reports every violation in discovery order.
	AccumulateAll
)

func (m Mode) String() string {
	switch m {
	case FailFast:
		return "fail_fast"
	case AccumulateAll:
		return "accumulate_all"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses "fail_fast" / "first" or "accumulate_all" / "all".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "", "fail_fast", "failfast", "first":
		return FailFast, nil
	case "accumulate_all", "accumulate", "all":
		return AccumulateAll, nil
	default:
		return FailFast, fmt.Errorf("unknown validation mode %q", s)
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the default collection mode.
func WithMode(m Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithMaxDepth caps message nesting. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// Engine is the validation entry point.
type Engine struct {
	registry *Registry
	mode     Mode
	maxDepth int
}

// New returns an engine dispatching through reg. reg is sealed; it must be
// fully populated before New is called.
func New(reg *Registry, opts ...Option) *Engine {
	reg.Seal()
	e := &Engine{
		registry: reg,
		mode:     FailFast,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the sealed registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Mode returns the default collection mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Validate validates msg in the engine's default mode. An empty result means
// msg is valid. A non-nil error is a configuration defect and comes with no
// violations.
func (e *Engine) Validate(msg proto.Message) (Violations, error) {
	return e.ValidateMode(msg, e.mode)
}

// ValidateMode is like Validate with an explicit mode.
func (e *Engine) ValidateMode(msg proto.Message, mode Mode) (Violations, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	return e.ValidateMessage(msg.ProtoReflect(), mode)
}

// ValidateMessage validates a reflective message.
func (e *Engine) ValidateMessage(msg protoreflect.Message, mode Mode) (Violations, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}

	name := msg.Descriptor().FullName()
	v, ok := e.registry.Lookup(name)
	if !ok {
		return nil, &ConfigError{Type: name, Err: ErrValidatorNotFound}
	}

	w := &Walk{
		registry: e.registry,
		mode:     mode,
		maxDepth: e.maxDepth,
		prefix:   "." + string(name),
	}
	if err := v.AssertValid(msg, w); err != nil && !errors.Is(err, errHalt) {
		return nil, err
	}
	return w.violations, nil
}

// Check validates msg in the default mode and folds the outcome into one
// error: nil, Violations, or a *ConfigError.
func (e *Engine) Check(msg proto.Message) error {
	violations, err := e.Validate(msg)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return violations
	}
	return nil
}
