package validate

import (
	"fmt"
	"sort"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Delegation decides whether a message-typed field is validated recursively.
type Delegation uint8

const (
	// DelegateDefault defers to MessageRules.DefaultDelegation.
	DelegateDefault Delegation = iota
	// DelegateIfPresent recurses only when the field is set.
	DelegateIfPresent
	// DelegateAlways recurses even into an unset field's default instance.
	DelegateAlways
	// DelegateSkip never recurses.
	DelegateSkip
)

func (d Delegation) String() string {
	switch d {
	case DelegateIfPresent:
		return "if_present"
	case DelegateAlways:
		return "always"
	case DelegateSkip:
		return "skip"
	default:
		return "default"
	}
}

// ParseDelegation parses the textual form used in rule manifests.
func ParseDelegation(s string) (Delegation, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "", "default":
		return DelegateDefault, nil
	case "if_present":
		return DelegateIfPresent, nil
	case "always":
		return DelegateAlways, nil
	case "skip", "none":
		return DelegateSkip, nil
	default:
		return DelegateDefault, fmt.Errorf("%w: unknown delegation %q", ErrInvalidRule, s)
	}
}

// FieldRules is the constraint list and delegation rule of one field.
type FieldRules struct {
	Name        protoreflect.Name
	Constraints []Constraint
	Delegation  Delegation
}

// MessageRules is the declarative rule table of one message type. It is the
// only input the interpreter needs; no per-type code is generated.
type MessageRules struct {
	Fields []FieldRules
	// DefaultDelegation applies to message-typed fields whose FieldRules do
	// not choose one, including fields absent from Fields. Zero means
	// DelegateIfPresent.
	DefaultDelegation Delegation
	// Formats resolves Format constraints. Nil means DefaultFormats.
	Formats *FormatSet
}

// fieldPlan is the compiled, immutable form of FieldRules.
type fieldPlan struct {
	fd          protoreflect.FieldDescriptor
	required    bool
	checks      []Constraint
	delegation  Delegation
	numberKind  NumberKind
	isString    bool
	isBytes     bool
	messageLike bool
}

// Compile checks rules against md and returns the validator interpreting
// them. Fields are evaluated in declaration order regardless of the order
// of rules.Fields.
func Compile(md protoreflect.MessageDescriptor, rules MessageRules) (*RuleValidator, error) {
	formats := rules.Formats
	if formats == nil {
		formats = DefaultFormats()
	}
	defaultDelegation := rules.DefaultDelegation
	if defaultDelegation == DelegateDefault {
		defaultDelegation = DelegateIfPresent
	}

	declared := make(map[protoreflect.Name]FieldRules, len(rules.Fields))
	for _, fr := range rules.Fields {
		if md.Fields().ByName(fr.Name) == nil {
			return nil, &ConfigError{Type: md.FullName(), Field: string(fr.Name), Err: ErrUnknownField}
		}
		if _, dup := declared[fr.Name]; dup {
			return nil, &ConfigError{Type: md.FullName(), Field: string(fr.Name), Err: fmt.Errorf("%w: field declared twice", ErrInvalidRule)}
		}
		declared[fr.Name] = fr
	}

	plans := make([]fieldPlan, 0, len(declared))
	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		fr, hasRules := declared[fd.Name()]

		plan := fieldPlan{
			fd:          fd,
			numberKind:  FieldNumberKind(fd.Kind()),
			isString:    fd.Kind() == protoreflect.StringKind,
			isBytes:     fd.Kind() == protoreflect.BytesKind,
			messageLike: isMessageLike(fd),
		}
		if fd.IsMap() {
			plan.numberKind = NumberInvalid
			plan.isString, plan.isBytes = false, false
		}

		if plan.messageLike {
			plan.delegation = fr.Delegation
			if plan.delegation == DelegateDefault {
				plan.delegation = defaultDelegation
			}
		} else if hasRules && fr.Delegation != DelegateDefault {
			return nil, &ConfigError{Type: md.FullName(), Field: string(fd.Name()), Err: fmt.Errorf("%w: delegation on non-message field", ErrInvalidRule)}
		}

		for _, c := range fr.Constraints {
			if err := plan.accept(c, formats); err != nil {
				return nil, &ConfigError{Type: md.FullName(), Field: string(fd.Name()), Err: err}
			}
		}

		if len(plan.checks) == 0 && !plan.required && (!plan.messageLike || plan.delegation == DelegateSkip) {
			continue
		}
		plans = append(plans, plan)
	}

	sort.SliceStable(plans, func(i, j int) bool { return plans[i].fd.Index() < plans[j].fd.Index() })

	return &RuleValidator{desc: md, fields: plans, formats: formats}, nil
}

// MustCompile is like Compile but panics on error. It is intended for
// package-level rule tables.
func MustCompile(md protoreflect.MessageDescriptor, rules MessageRules) *RuleValidator {
	v, err := Compile(md, rules)
	if err != nil {
		panic(err)
	}
	return v
}

func (p *fieldPlan) accept(c Constraint, formats *FormatSet) error {
	switch c := c.(type) {
	case Required:
		if p.required {
			return fmt.Errorf("%w: required declared twice", ErrInvalidRule)
		}
		p.required = true
		return nil
	case Comparison:
		if c.Op < OpGT || c.Op > OpLTE {
			return fmt.Errorf("%w: unknown operator %s", ErrInvalidRule, c.Op)
		}
		if err := p.acceptNumber(c.Bound); err != nil {
			return err
		}
	case Range:
		if c.Lower == nil && c.Upper == nil {
			return fmt.Errorf("%w: range without bounds", ErrInvalidRule)
		}
		if c.Lower != nil {
			if err := p.acceptNumber(c.Lower.Value); err != nil {
				return err
			}
		}
		if c.Upper != nil {
			if err := p.acceptNumber(c.Upper.Value); err != nil {
				return err
			}
		}
		if c.Lower != nil && c.Upper != nil {
			if ok, _ := c.Lower.Value.compare(OpLTE, c.Upper.Value); !ok {
				return fmt.Errorf("%w: empty range %s", ErrInvalidRule, c)
			}
		}
	case Length:
		if !p.isString && !p.isBytes {
			return fmt.Errorf("%w: length on %s field", ErrKindMismatch, p.fd.Kind())
		}
		if c.Min < 0 && c.Max < 0 {
			return fmt.Errorf("%w: length without bounds", ErrInvalidRule)
		}
		if c.Min >= 0 && c.Max >= 0 && c.Min > c.Max {
			return fmt.Errorf("%w: min length %d exceeds max length %d", ErrInvalidRule, c.Min, c.Max)
		}
	case Pattern:
		if !p.isString {
			return fmt.Errorf("%w: pattern on %s field", ErrKindMismatch, p.fd.Kind())
		}
		if c.Expr == nil {
			return fmt.Errorf("%w: nil pattern", ErrInvalidRule)
		}
	case Format:
		if !p.isString {
			return fmt.Errorf("%w: format on %s field", ErrKindMismatch, p.fd.Kind())
		}
		if _, ok := formats.Lookup(c.Name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFormat, c.Name)
		}
	case nil:
		return fmt.Errorf("%w: nil constraint", ErrInvalidRule)
	default:
		return fmt.Errorf("%w: unsupported constraint %T", ErrInvalidRule, c)
	}
	p.checks = append(p.checks, c)
	return nil
}

func (p *fieldPlan) acceptNumber(bound Number) error {
	if p.numberKind == NumberInvalid {
		return fmt.Errorf("%w: numeric bound on %s field", ErrKindMismatch, p.fd.Kind())
	}
	if bound.Kind() != p.numberKind {
		return fmt.Errorf("%w: %s bound on %s field", ErrKindMismatch, bound.Kind(), p.fd.Kind())
	}
	return nil
}

// isMessageLike reports whether fd holds messages: singular, repeated, or
// as map values.
func isMessageLike(fd protoreflect.FieldDescriptor) bool {
	if fd.IsMap() {
		return isMessageKind(fd.MapValue().Kind())
	}
	return isMessageKind(fd.Kind())
}

func isMessageKind(k protoreflect.Kind) bool {
	return k == protoreflect.MessageKind || k == protoreflect.GroupKind
}
