package validate

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func TestCompile_Errors(t *testing.T) {
	fd := testFile(t)
	team := findMessage(t, fd, teamMessage)

	tests := []struct {
		name    string
		rules   MessageRules
		wantErr error
	}{
		{
			name:    "unknown field",
			rules:   MessageRules{Fields: []FieldRules{{Name: "nickname", Constraints: []Constraint{Required{}}}}},
			wantErr: ErrUnknownField,
		},
		{
			name: "field declared twice",
			rules: MessageRules{Fields: []FieldRules{
				{Name: "name", Constraints: []Constraint{Required{}}},
				{Name: "name", Constraints: []Constraint{MinLen(1)}},
			}},
			wantErr: ErrInvalidRule,
		},
		{
			name:    "uint bound on enum",
			rules:   MessageRules{Fields: []FieldRules{{Name: "status", Constraints: []Constraint{Gt(Uint(0))}}}},
			wantErr: ErrKindMismatch,
		},
		{
			name:    "int bound on uint field",
			rules:   MessageRules{Fields: []FieldRules{{Name: "size", Constraints: []Constraint{Lte(Int(10))}}}},
			wantErr: ErrKindMismatch,
		},
		{
			name:    "numeric bound on string",
			rules:   MessageRules{Fields: []FieldRules{{Name: "name", Constraints: []Constraint{Gte(Int(1))}}}},
			wantErr: ErrKindMismatch,
		},
		{
			name:    "length on number",
			rules:   MessageRules{Fields: []FieldRules{{Name: "size", Constraints: []Constraint{MinLen(1)}}}},
			wantErr: ErrKindMismatch,
		},
		{
			name:    "pattern on bytes",
			rules:   MessageRules{Fields: []FieldRules{{Name: "avatar", Constraints: []Constraint{Pattern{Expr: regexp.MustCompile(".")}}}}},
			wantErr: ErrKindMismatch,
		},
		{
			name:    "empty range",
			rules:   MessageRules{Fields: []FieldRules{{Name: "score", Constraints: []Constraint{Between(Float(2), Float(1))}}}},
			wantErr: ErrInvalidRule,
		},
		{
			name:    "range without bounds",
			rules:   MessageRules{Fields: []FieldRules{{Name: "score", Constraints: []Constraint{Range{}}}}},
			wantErr: ErrInvalidRule,
		},
		{
			name:    "inverted length",
			rules:   MessageRules{Fields: []FieldRules{{Name: "name", Constraints: []Constraint{LenBetween(5, 2)}}}},
			wantErr: ErrInvalidRule,
		},
		{
			name:    "unknown format",
			rules:   MessageRules{Fields: []FieldRules{{Name: "name", Constraints: []Constraint{Format{Name: "isbn"}}}}},
			wantErr: ErrUnknownFormat,
		},
		{
			name:    "delegation on scalar",
			rules:   MessageRules{Fields: []FieldRules{{Name: "name", Delegation: DelegateAlways}}},
			wantErr: ErrInvalidRule,
		},
		{
			name:    "length on map",
			rules:   MessageRules{Fields: []FieldRules{{Name: "by_role", Constraints: []Constraint{MaxLen(1)}}}},
			wantErr: ErrKindMismatch,
		},
		{
			name:    "nil constraint",
			rules:   MessageRules{Fields: []FieldRules{{Name: "name", Constraints: []Constraint{nil}}}},
			wantErr: ErrInvalidRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(team, tt.rules)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestCompile_Plans(t *testing.T) {
	fd := testFile(t)

	// Plain data type: nothing to evaluate.
	list, err := Compile(findMessage(t, fd, listUserRequest), MessageRules{})
	require.NoError(t, err)
	assert.Equal(t, 0, list.NumFields())

	// Message fields delegate by default; skipped ones are dropped.
	update, err := Compile(findMessage(t, fd, updateUserRequest), MessageRules{
		Fields: []FieldRules{{Name: "mask", Delegation: DelegateSkip}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, update.NumFields())

	user, err := Compile(findMessage(t, fd, userMessage), MessageRules{
		Fields: []FieldRules{
			{Name: "username", Constraints: []Constraint{Required{}, LenBetween(3, 32)}},
			{Name: "email", Constraints: []Constraint{Email()}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, user.NumFields())
	assert.Equal(t, 3, user.NumConstraints())
	assert.Equal(t, userMessage, user.Descriptor().FullName())
}

func TestCompile_CustomFormat(t *testing.T) {
	fd := testFile(t)
	md := findMessage(t, fd, userMessage)

	formats := DefaultFormats().With("lower", func(s string) bool { return regexp.MustCompile(`^[a-z]+$`).MatchString(s) })
	reg := NewRegistry()
	require.NoError(t, reg.RegisterRules(md, MessageRules{
		Fields:  []FieldRules{{Name: "username", Constraints: []Constraint{Format{Name: "lower"}}}},
		Formats: formats,
	}))

	msg := dynamicMessage(t, md)
	set(msg, "username", protoreflect.ValueOfString("Alice"))

	violations, err := New(reg).Validate(msg)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, ConstraintKind("lower"), violations[0].Constraint)

	_, ok := DefaultFormats().Lookup("lower")
	assert.False(t, ok)
}

func TestParseDelegation(t *testing.T) {
	tests := map[string]Delegation{
		"":           DelegateDefault,
		"if_present": DelegateIfPresent,
		"if-present": DelegateIfPresent,
		"always":     DelegateAlways,
		"skip":       DelegateSkip,
	}
	for in, want := range tests {
		got, err := ParseDelegation(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDelegation("sometimes")
	assert.ErrorIs(t, err, ErrInvalidRule)
}
