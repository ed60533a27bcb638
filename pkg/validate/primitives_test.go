package validate

import (
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckComparison(t *testing.T) {
	tests := []struct {
		name   string
		actual Number
		op     Op
		bound  Number
		ok     bool
	}{
		{name: "gt holds", actual: Int(2), op: OpGT, bound: Int(1), ok: true},
		{name: "gt equal", actual: Int(1), op: OpGT, bound: Int(1)},
		{name: "gte equal", actual: Uint(7), op: OpGTE, bound: Uint(7), ok: true},
		{name: "lt float", actual: Float(0.5), op: OpLT, bound: Float(1), ok: true},
		{name: "lte above", actual: Float(1.01), op: OpLTE, bound: Float(1)},
		{name: "large uint", actual: Uint(math.MaxUint64), op: OpGT, bound: Uint(math.MaxInt64), ok: true},
		{name: "nan never holds", actual: Float(math.NaN()), op: OpLTE, bound: Float(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := CheckComparison(".pkg.Msg.f", tt.actual, tt.op, tt.bound)
			require.NoError(t, err)
			if tt.ok {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v)
			assert.Equal(t, tt.op.Kind(), v.Constraint)
			assert.Equal(t, ".pkg.Msg.f", v.Field)
		})
	}

	_, err := CheckComparison(".pkg.Msg.f", Int(1), OpGT, Float(0))
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.True(t, IsConfigError(err))
}

func TestCheckRange(t *testing.T) {
	exclusive := Range{
		Lower: &Bound{Value: Int(0)},
		Upper: &Bound{Value: Int(10), Inclusive: true},
	}
	assert.Equal(t, "(0, 10]", exclusive.String())

	v, err := CheckRange("f", Int(0), exclusive)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, KindRange, v.Constraint)
	assert.Equal(t, "value must be in range (0, 10]", v.Message)

	v, err = CheckRange("f", Int(10), exclusive)
	require.NoError(t, err)
	assert.Nil(t, v)

	// A one-sided range reports like the comparison it is.
	v, err = CheckRange("f", Int(11), Range{Upper: &Bound{Value: Int(10), Inclusive: true}})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, KindLTE, v.Constraint)
	assert.Equal(t, "(-inf, 10]", Range{Upper: &Bound{Value: Int(10), Inclusive: true}}.String())
}

func TestCheckLength(t *testing.T) {
	assert.Nil(t, CheckLength("f", 3, LenBetween(3, 5), "characters", "abc"))

	v := CheckLength("f", 2, MinLen(3), "characters", "ab")
	require.NotNil(t, v)
	assert.Equal(t, KindMinLen, v.Constraint)
	assert.Equal(t, "length must be at least 3 characters", v.Message)

	v = CheckLength("f", 6, MaxLen(5), "bytes", []byte("abcdef"))
	require.NotNil(t, v)
	assert.Equal(t, KindMaxLen, v.Constraint)
	assert.Equal(t, "length must be at most 5 bytes", v.Message)

	between := LenBetween(3, 5)
	assert.Equal(t, KindLength, between.Kind())
	assert.Equal(t, KindMinLen, MinLen(3).Kind())
	assert.Equal(t, KindMaxLen, MaxLen(5).Kind())

	v = CheckLength("f", 2, between, "characters", "ab")
	require.NotNil(t, v)
	assert.Equal(t, KindMinLen, v.Constraint)

	v = CheckLength("f", 6, between, "characters", "abcdef")
	require.NotNil(t, v)
	assert.Equal(t, KindMaxLen, v.Constraint)
}

func TestCheckPatternAndFormat(t *testing.T) {
	re := regexp.MustCompile(`^[a-z0-9_]+$`)
	assert.Nil(t, CheckPattern("f", "user_1", re))
	v := CheckPattern("f", "User-1", re)
	require.NotNil(t, v)
	assert.Equal(t, KindPattern, v.Constraint)

	v, err := CheckFormat("f", "a@b.co", FormatEmail, nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = CheckFormat("f", "localhost", FormatURI, nil)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "value must be a valid absolute URI", v.Message)

	_, err = CheckFormat("f", "x", "isbn", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = MatchPattern("(")
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestCheckRequired(t *testing.T) {
	assert.Nil(t, CheckRequired("f", true, "x"))

	v := CheckRequired("f", false, nil)
	require.NotNil(t, v)
	assert.Equal(t, KindRequired, v.Constraint)
	assert.Equal(t, "value is required", v.Message)
	assert.Nil(t, v.Value)
}

func TestParseNumber(t *testing.T) {
	n, err := ParseNumber(NumberUint, "18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), n.Interface())

	n, err = ParseNumber(NumberInt, "-9223372036854775808")
	require.NoError(t, err)
	assert.Equal(t, "-9223372036854775808", n.String())

	n, err = ParseNumber(NumberFloat, "0.25")
	require.NoError(t, err)
	assert.Equal(t, 0.25, n.Interface())

	_, err = ParseNumber(NumberUint, "-1")
	assert.Error(t, err)

	_, err = ParseNumber(NumberInt, "1.5")
	assert.Error(t, err)
}

func TestViolationsError(t *testing.T) {
	vs := Violations{
		{Field: ".a.B.c", Message: "value is required"},
		{Field: ".a.B.d", Message: "value must be greater than 0"},
	}
	assert.Equal(t, "validation failed: 2 violations\n  - .a.B.c: value is required\n  - .a.B.d: value must be greater than 0", vs.Error())
	assert.Equal(t, "validation passed", Violations(nil).Error())
}
