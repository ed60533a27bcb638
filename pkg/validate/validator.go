package validate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Validator checks one message type. Implementations report violations
// through w and return a non-nil error only to stop the walk: either the
// error returned by w.Report / w.Descend, or a *ConfigError.
type Validator interface {
	AssertValid(msg protoreflect.Message, w *Walk) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(msg protoreflect.Message, w *Walk) error

// AssertValid calls f(msg, w).
func (f ValidatorFunc) AssertValid(msg protoreflect.Message, w *Walk) error {
	return f(msg, w)
}

// Passthrough accepts every message without looking at it.
var Passthrough Validator = ValidatorFunc(func(protoreflect.Message, *Walk) error { return nil })

// RuleValidator interprets a compiled MessageRules table. It holds no
// per-call state and is safe for concurrent use.
type RuleValidator struct {
	desc    protoreflect.MessageDescriptor
	fields  []fieldPlan
	formats *FormatSet
}

// Descriptor returns the message type the rules were compiled for.
func (v *RuleValidator) Descriptor() protoreflect.MessageDescriptor {
	return v.desc
}

// NumFields returns how many fields carry constraints or delegate.
func (v *RuleValidator) NumFields() int {
	return len(v.fields)
}

// NumConstraints returns the number of declared constraints.
func (v *RuleValidator) NumConstraints() int {
	n := 0
	for i := range v.fields {
		n += len(v.fields[i].checks)
		if v.fields[i].required {
			n++
		}
	}
	return n
}

// AssertValid evaluates every planned field in declaration order.
func (v *RuleValidator) AssertValid(msg protoreflect.Message, w *Walk) error {
	if len(v.fields) == 0 {
		return nil
	}

	desc := msg.Descriptor()
	if desc.FullName() != v.desc.FullName() {
		return &ConfigError{Type: desc.FullName(), Field: w.prefix, Err: fmt.Errorf("%w: validator compiled for %s", ErrKindMismatch, v.desc.FullName())}
	}

	for i := range v.fields {
		p := &v.fields[i]
		// Resolve against the instance's own descriptor; dynamic messages
		// reject field descriptors from another compilation.
		fd := p.fd
		if desc != v.desc {
			fd = desc.Fields().ByNumber(p.fd.Number())
			if fd == nil {
				return &ConfigError{Type: desc.FullName(), Field: w.Path(p.fd.Name()), Err: ErrUnknownField}
			}
		}
		if err := v.checkField(msg, fd, p, w); err != nil {
			return err
		}
	}
	return nil
}

func (v *RuleValidator) checkField(msg protoreflect.Message, fd protoreflect.FieldDescriptor, p *fieldPlan, w *Walk) error {
	path := w.Path(fd.Name())
	present := msg.Has(fd)

	if p.required && !present {
		return w.Report(CheckRequired(path, false, nil))
	}

	switch {
	case fd.IsList():
		list := msg.Get(fd).List()
		for i := 0; i < list.Len(); i++ {
			elemPath := path + "[" + strconv.Itoa(i) + "]"
			if err := v.checkElement(elemPath, fd, p, list.Get(i), w); err != nil {
				return err
			}
		}
		return nil
	case fd.IsMap():
		if !p.messageLike || p.delegation == DelegateSkip {
			return nil
		}
		m := msg.Get(fd).Map()
		for _, key := range sortedMapKeys(m) {
			if err := w.Descend(path+"["+formatMapKey(key)+"]", m.Get(key).Message()); err != nil {
				return err
			}
		}
		return nil
	case p.messageLike:
		switch p.delegation {
		case DelegateSkip:
			return nil
		case DelegateIfPresent:
			if !present {
				return nil
			}
		}
		return w.Descend(path, msg.Get(fd).Message())
	default:
		return v.checkScalar(path, fd, p, msg.Get(fd), w)
	}
}

func (v *RuleValidator) checkElement(path string, fd protoreflect.FieldDescriptor, p *fieldPlan, value protoreflect.Value, w *Walk) error {
	if p.messageLike {
		if p.delegation == DelegateSkip {
			return nil
		}
		return w.Descend(path, value.Message())
	}
	return v.checkScalar(path, fd, p, value, w)
}

func (v *RuleValidator) checkScalar(path string, fd protoreflect.FieldDescriptor, p *fieldPlan, value protoreflect.Value, w *Walk) error {
	for _, c := range p.checks {
		violation, err := v.evaluate(path, fd, p, c, value)
		if err != nil {
			var ce *ConfigError
			if errors.As(err, &ce) && ce.Type == "" {
				ce.Type = fd.ContainingMessage().FullName()
			}
			return err
		}
		if err := w.Report(violation); err != nil {
			return err
		}
	}
	return nil
}

func (v *RuleValidator) evaluate(path string, fd protoreflect.FieldDescriptor, p *fieldPlan, c Constraint, value protoreflect.Value) (*Violation, error) {
	switch c := c.(type) {
	case Comparison:
		n, _ := numberOf(fd.Kind(), value)
		return CheckComparison(path, n, c.Op, c.Bound)
	case Range:
		n, _ := numberOf(fd.Kind(), value)
		return CheckRange(path, n, c)
	case Length:
		if p.isBytes {
			b := value.Bytes()
			if len(b) == 0 && !p.required {
				return nil, nil
			}
			return CheckLength(path, len(b), c, "bytes", b), nil
		}
		s := value.String()
		if s == "" && !p.required {
			return nil, nil
		}
		return CheckLength(path, utf8.RuneCountInString(s), c, "characters", s), nil
	case Pattern:
		s := value.String()
		if s == "" && !p.required {
			return nil, nil
		}
		return CheckPattern(path, s, c.Expr), nil
	case Format:
		s := value.String()
		if s == "" && !p.required {
			return nil, nil
		}
		return CheckFormat(path, s, c.Name, v.formats)
	default:
		return nil, nil
	}
}

func sortedMapKeys(m protoreflect.Map) []protoreflect.MapKey {
	keys := make([]protoreflect.MapKey, 0, m.Len())
	m.Range(func(k protoreflect.MapKey, _ protoreflect.Value) bool {
		keys = append(keys, k)
		return true
	})
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i].Interface(), keys[j].Interface()
		switch a := a.(type) {
		case string:
			return a < b.(string)
		case int32:
			return a < b.(int32)
		case int64:
			return a < b.(int64)
		case uint32:
			return a < b.(uint32)
		case uint64:
			return a < b.(uint64)
		case bool:
			return !a && b.(bool)
		default:
			return false
		}
	})
	return keys
}

func formatMapKey(k protoreflect.MapKey) string {
	if s, ok := k.Interface().(string); ok {
		return strconv.Quote(s)
	}
	return k.String()
}
