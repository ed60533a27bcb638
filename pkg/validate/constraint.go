package validate

import (
	"fmt"
	"regexp"
)

// Op is a numeric comparison operator.
type Op uint8

const (
	OpGT Op = iota + 1
	OpGTE
	OpLT
	OpLTE
)

func (o Op) String() string {
	switch o {
	case OpGT:
		return "gt"
	case OpGTE:
		return "gte"
	case OpLT:
		return "lt"
	case OpLTE:
		return "lte"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Kind returns the violation tag for o.
func (o Op) Kind() ConstraintKind {
	return ConstraintKind(o.String())
}

func (o Op) holds(c int) bool {
	switch o {
	case OpGT:
		return c > 0
	case OpGTE:
		return c >= 0
	case OpLT:
		return c < 0
	case OpLTE:
		return c <= 0
	default:
		return false
	}
}

func (o Op) phrase() string {
	switch o {
	case OpGT:
		return "greater than"
	case OpGTE:
		return "greater than or equal to"
	case OpLT:
		return "less than"
	case OpLTE:
		return "less than or equal to"
	default:
		return o.String()
	}
}

// Constraint is one declared rule on a field. The set of implementations is
// closed: Required, Comparison, Range, Length, Pattern and Format.
type Constraint interface {
	Kind() ConstraintKind
	constraint()
}

// Required fails when the field is not present.
type Required struct{}

// Comparison fails unless "value Op Bound" holds.
type Comparison struct {
	Op    Op
	Bound Number
}

// Bound is one side of a Range.
type Bound struct {
	Value     Number
	Inclusive bool
}

// Range combines an optional lower and an optional upper bound. A nil side
// imposes no constraint.
type Range struct {
	Lower *Bound
	Upper *Bound
}

// Length bounds the character length of a string (byte length for bytes
// fields). A negative bound is unset.
type Length struct {
	Min int
	Max int
}

// Pattern requires a string to match a regular expression.
type Pattern struct {
	Expr *regexp.Regexp
}

// Format requires a string to have a named shape such as "email".
type Format struct {
	Name string
}

func (Required) Kind() ConstraintKind     { return KindRequired }
func (c Comparison) Kind() ConstraintKind { return c.Op.Kind() }
func (Range) Kind() ConstraintKind        { return KindRange }
func (Pattern) Kind() ConstraintKind      { return KindPattern }
func (f Format) Kind() ConstraintKind     { return ConstraintKind(f.Name) }

// Kind describes the declaration: min_len or max_len for a one-sided bound,
// length when both are set. Violations always name the side that failed.
func (l Length) Kind() ConstraintKind {
	switch {
	case l.Max < 0:
		return KindMinLen
	case l.Min < 0:
		return KindMaxLen
	default:
		return KindLength
	}
}

func (Required) constraint()   {}
func (Comparison) constraint() {}
func (Range) constraint()      {}
func (Length) constraint()     {}
func (Pattern) constraint()    {}
func (Format) constraint()     {}

// Gt declares value > bound.
func Gt(bound Number) Comparison { return Comparison{Op: OpGT, Bound: bound} }

// Gte declares value >= bound.
func Gte(bound Number) Comparison { return Comparison{Op: OpGTE, Bound: bound} }

// Lt declares value < bound.
func Lt(bound Number) Comparison { return Comparison{Op: OpLT, Bound: bound} }

// Lte declares value <= bound.
func Lte(bound Number) Comparison { return Comparison{Op: OpLTE, Bound: bound} }

// Between declares lo <= value <= hi.
func Between(lo, hi Number) Range {
	return Range{
		Lower: &Bound{Value: lo, Inclusive: true},
		Upper: &Bound{Value: hi, Inclusive: true},
	}
}

// MinLen declares a minimum length.
func MinLen(n int) Length { return Length{Min: n, Max: -1} }

// MaxLen declares a maximum length.
func MaxLen(n int) Length { return Length{Min: -1, Max: n} }

// LenBetween declares both length bounds.
func LenBetween(min, max int) Length { return Length{Min: min, Max: max} }

// MatchPattern compiles expr into a Pattern constraint.
func MatchPattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: pattern %q: %v", ErrInvalidRule, expr, err)
	}
	return Pattern{Expr: re}, nil
}

// Email declares the email format.
func Email() Format { return Format{Name: FormatEmail} }

func (r Range) String() string {
	lo, hi := "(-inf", "+inf)"
	if r.Lower != nil {
		lo = "(" + r.Lower.Value.String()
		if r.Lower.Inclusive {
			lo = "[" + r.Lower.Value.String()
		}
	}
	if r.Upper != nil {
		hi = r.Upper.Value.String() + ")"
		if r.Upper.Inclusive {
			hi = r.Upper.Value.String() + "]"
		}
	}
	return lo + ", " + hi
}
