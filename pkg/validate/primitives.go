package validate

import (
	"fmt"
	"regexp"
)

// The Check functions are the constraint primitives. Each takes the fully
// qualified field path and the value under test and returns nil when the
// value satisfies the constraint.

// CheckRequired fails when present is false. value is reported as-is; pass
// nil for absent message fields.
func CheckRequired(field string, present bool, value any) *Violation {
	if present {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: KindRequired,
		Message:    "value is required",
		Value:      value,
	}
}

// CheckComparison fails unless "actual op bound" holds. Operands of
// different numeric kinds yield a *ConfigError.
func CheckComparison(field string, actual Number, op Op, bound Number) (*Violation, error) {
	ok, err := actual.compare(op, bound)
	if err != nil {
		return nil, &ConfigError{Field: field, Err: fmt.Errorf("%w: %s value compared with %s bound", err, actual.Kind(), bound.Kind())}
	}
	if ok {
		return nil, nil
	}
	return &Violation{
		Field:      field,
		Constraint: op.Kind(),
		Message:    fmt.Sprintf("value must be %s %s", op.phrase(), bound),
		Value:      actual.Interface(),
	}, nil
}

// CheckRange evaluates both sides of r and reports at most one violation.
// A range with a single side reports like the equivalent comparison.
func CheckRange(field string, actual Number, r Range) (*Violation, error) {
	if r.Lower == nil || r.Upper == nil {
		var op Op
		var side *Bound
		switch {
		case r.Lower != nil:
			side, op = r.Lower, OpGT
			if side.Inclusive {
				op = OpGTE
			}
		case r.Upper != nil:
			side, op = r.Upper, OpLT
			if side.Inclusive {
				op = OpLTE
			}
		default:
			return nil, nil
		}
		return CheckComparison(field, actual, op, side.Value)
	}

	lowerOp, upperOp := OpGT, OpLT
	if r.Lower.Inclusive {
		lowerOp = OpGTE
	}
	if r.Upper.Inclusive {
		upperOp = OpLTE
	}

	for _, side := range []struct {
		op    Op
		bound Number
	}{{lowerOp, r.Lower.Value}, {upperOp, r.Upper.Value}} {
		ok, err := actual.compare(side.op, side.bound)
		if err != nil {
			return nil, &ConfigError{Field: field, Err: fmt.Errorf("%w: %s value compared with %s bound", err, actual.Kind(), side.bound.Kind())}
		}
		if !ok {
			return &Violation{
				Field:      field,
				Constraint: KindRange,
				Message:    "value must be in range " + r.String(),
				Value:      actual.Interface(),
			}, nil
		}
	}
	return nil, nil
}

// CheckLength fails when n, the measured length of value, is outside l.
// unit names what n counts ("characters" or "bytes").
func CheckLength(field string, n int, l Length, unit string, value any) *Violation {
	if l.Min >= 0 && n < l.Min {
		return &Violation{
			Field:      field,
			Constraint: KindMinLen,
			Message:    fmt.Sprintf("length must be at least %d %s", l.Min, unit),
			Value:      value,
		}
	}
	if l.Max >= 0 && n > l.Max {
		return &Violation{
			Field:      field,
			Constraint: KindMaxLen,
			Message:    fmt.Sprintf("length must be at most %d %s", l.Max, unit),
			Value:      value,
		}
	}
	return nil
}

// CheckPattern fails when s does not match re.
func CheckPattern(field, s string, re *regexp.Regexp) *Violation {
	if re.MatchString(s) {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: KindPattern,
		Message:    fmt.Sprintf("value does not match pattern %q", re.String()),
		Value:      s,
	}
}

// CheckFormat fails when s does not have the named shape. An unknown format
// is a *ConfigError.
func CheckFormat(field, s, name string, formats *FormatSet) (*Violation, error) {
	if formats == nil {
		formats = DefaultFormats()
	}
	fn, ok := formats.Lookup(name)
	if !ok {
		return nil, &ConfigError{Field: field, Err: fmt.Errorf("%w: %q", ErrUnknownFormat, name)}
	}
	if fn(s) {
		return nil, nil
	}
	return &Violation{
		Field:      field,
		Constraint: ConstraintKind(name),
		Message:    "value must be a valid " + formatNoun(name),
		Value:      s,
	}, nil
}

func formatNoun(name string) string {
	switch name {
	case FormatEmail:
		return "email address"
	case FormatURI:
		return "absolute URI"
	case FormatHostname:
		return "hostname"
	case FormatUUID:
		return "UUID"
	case FormatIP:
		return "IP address"
	case FormatIPv4:
		return "IPv4 address"
	case FormatIPv6:
		return "IPv6 address"
	default:
		return name
	}
}
