package validate

import (
	"strconv"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// NumberKind is the numeric family a field or bound belongs to. Values of
// different kinds are never compared with each other.
type NumberKind uint8

const (
	NumberInvalid NumberKind = iota
	NumberInt
	NumberUint
	NumberFloat
)

func (k NumberKind) String() string {
	switch k {
	case NumberInt:
		return "int"
	case NumberUint:
		return "uint"
	case NumberFloat:
		return "float"
	default:
		return "invalid"
	}
}

// Number is a numeric field value or constraint bound.
type Number struct {
	kind NumberKind
	i    int64
	u    uint64
	f    float64
}

// Int returns a signed integer Number.
func Int(v int64) Number { return Number{kind: NumberInt, i: v} }

// Uint returns an unsigned integer Number.
func Uint(v uint64) Number { return Number{kind: NumberUint, u: v} }

// Float returns a floating point Number.
func Float(v float64) Number { return Number{kind: NumberFloat, f: v} }

// Kind returns the numeric family of n.
func (n Number) Kind() NumberKind { return n.kind }

// IsValid reports whether n holds a value.
func (n Number) IsValid() bool { return n.kind != NumberInvalid }

// Interface returns n as int64, uint64 or float64.
func (n Number) Interface() any {
	switch n.kind {
	case NumberInt:
		return n.i
	case NumberUint:
		return n.u
	case NumberFloat:
		return n.f
	default:
		return nil
	}
}

func (n Number) String() string {
	switch n.kind {
	case NumberInt:
		return strconv.FormatInt(n.i, 10)
	case NumberUint:
		return strconv.FormatUint(n.u, 10)
	case NumberFloat:
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	default:
		return "<invalid>"
	}
}

// ParseNumber parses s losslessly into a Number of the given kind.
func ParseNumber(kind NumberKind, s string) (Number, error) {
	switch kind {
	case NumberInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Number{}, err
		}
		return Int(v), nil
	case NumberUint:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Number{}, err
		}
		return Uint(v), nil
	case NumberFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Number{}, err
		}
		return Float(v), nil
	default:
		return Number{}, ErrKindMismatch
	}
}

// compare reports whether "n op bound" holds. Mixed kinds are a
// configuration defect and are never coerced. NaN satisfies no comparison.
func (n Number) compare(op Op, bound Number) (bool, error) {
	if n.kind == NumberInvalid || n.kind != bound.kind {
		return false, ErrKindMismatch
	}

	var c int
	switch n.kind {
	case NumberInt:
		c = cmpOrdered(n.i, bound.i)
	case NumberUint:
		c = cmpOrdered(n.u, bound.u)
	case NumberFloat:
		if n.f != n.f || bound.f != bound.f {
			return false, nil
		}
		c = cmpOrdered(n.f, bound.f)
	}
	return op.holds(c), nil
}

func cmpOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FieldNumberKind returns the numeric family of a field kind, or
// NumberInvalid for non-numeric kinds. Enums compare as signed integers.
func FieldNumberKind(kind protoreflect.Kind) NumberKind {
	switch kind {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.EnumKind:
		return NumberInt
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return NumberUint
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return NumberFloat
	default:
		return NumberInvalid
	}
}

// numberOf converts a scalar field value to a Number.
func numberOf(kind protoreflect.Kind, v protoreflect.Value) (Number, bool) {
	switch FieldNumberKind(kind) {
	case NumberInt:
		if kind == protoreflect.EnumKind {
			return Int(int64(v.Enum())), true
		}
		return Int(v.Int()), true
	case NumberUint:
		return Uint(v.Uint()), true
	case NumberFloat:
		return Float(v.Float()), true
	default:
		return Number{}, false
	}
}
