package validate

import (
	"errors"
	"fmt"
	"strings"
)

// ConstraintKind tags the constraint that produced a violation. Format
// violations carry the format name (e.g. "email").
type ConstraintKind string

const (
	KindRequired ConstraintKind = "required"
	KindGT       ConstraintKind = "gt"
	KindGTE      ConstraintKind = "gte"
	KindLT       ConstraintKind = "lt"
	KindLTE      ConstraintKind = "lte"
	KindRange    ConstraintKind = "range"
	KindMinLen   ConstraintKind = "min_len"
	KindMaxLen   ConstraintKind = "max_len"
	KindLength   ConstraintKind = "length"
	KindPattern  ConstraintKind = "pattern"
)

// Violation is a single unmet constraint.
type Violation struct {
	// Field is the dotted path from the root message, for example
	// ".acme.v1.Order.items[2].sku".
	Field      string         `json:"field"`
	Constraint ConstraintKind `json:"constraint"`
	Message    string         `json:"message"`
	// Value is the offending value; nil when the field holds no value.
	Value any `json:"value,omitempty"`
}

func (v Violation) Error() string {
	return v.Field + ": " + v.Message
}

// Violations is the ordered set of violations found by one validation call.
// It implements error so it can be returned from Check-style APIs.
type Violations []Violation

func (vs Violations) Error() string {
	switch len(vs) {
	case 0:
		return "validation passed"
	case 1:
		return "validation failed: " + vs[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "validation failed: %d violations", len(vs))
	for _, v := range vs {
		b.WriteString("\n  - ")
		b.WriteString(v.Error())
	}
	return b.String()
}

// Fields returns the violated field paths in discovery order.
func (vs Violations) Fields() []string {
	fields := make([]string, len(vs))
	for i, v := range vs {
		fields[i] = v.Field
	}
	return fields
}

// AsViolations extracts Violations from an error returned by Engine.Check.
func AsViolations(err error) (Violations, bool) {
	var vs Violations
	if errors.As(err, &vs) {
		return vs, true
	}
	return nil, false
}
