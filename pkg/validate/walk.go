package validate

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Walk is the state of one validation call: the registry used for nested
// dispatch, the collection mode, and the path of the message currently
// being validated. A Walk is not safe for concurrent use; the engine makes
// a new one per call.
type Walk struct {
	registry   *Registry
	mode       Mode
	maxDepth   int
	depth      int
	prefix     string
	violations Violations
}

// Mode returns the collection mode of the call.
func (w *Walk) Mode() Mode {
	return w.mode
}

// Depth returns how many messages deep the walk currently is. The root
// message is at depth 0.
func (w *Walk) Depth() int {
	return w.depth
}

// Path returns the fully qualified path of a field of the current message.
func (w *Walk) Path(name protoreflect.Name) string {
	return w.prefix + "." + string(name)
}

// Report records v. In fail-fast mode it returns a non-nil error that the
// caller must return unchanged so the walk stops. A nil v is ignored.
func (w *Walk) Report(v *Violation) error {
	if v == nil {
		return nil
	}
	w.violations = append(w.violations, *v)
	if w.mode == FailFast {
		return errHalt
	}
	return nil
}

// Descend validates msg, found at path, with the validator registered for
// its runtime type.
func (w *Walk) Descend(path string, msg protoreflect.Message) error {
	name := msg.Descriptor().FullName()
	if w.depth >= w.maxDepth {
		return &ConfigError{Type: name, Field: path, Err: ErrMaxDepthExceeded}
	}

	v, ok := w.registry.Lookup(name)
	if !ok {
		return &ConfigError{Type: name, Field: path, Err: ErrValidatorNotFound}
	}

	parent := w.prefix
	w.prefix = path
	w.depth++
	err := v.AssertValid(msg, w)
	w.depth--
	w.prefix = parent
	return err
}
