package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/schema"
	"github.com/platinummonkey/protoguard/pkg/validate"
)

// Build compiles the manifest against s and returns a sealed registry with
// a validator for every message in s, imports included, so that any type
// reachable from a validated message resolves. Types the manifest does not
// mention get an empty rule table.
func Build(s *schema.Schema, m *Manifest, log logrus.FieldLogger) (*validate.Registry, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	defaultDelegation, err := validate.ParseDelegation(m.Defaults.Delegation)
	if err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}

	tables := make(map[protoreflect.FullName]validate.MessageRules, len(m.Messages))
	for _, name := range sortedKeys(m.Messages) {
		md, err := s.FindMessage(protoreflect.FullName(name))
		if err != nil {
			return nil, fmt.Errorf("rules for %s: %w", name, err)
		}
		table, err := MessageRules(md, m.Messages[name], defaultDelegation)
		if err != nil {
			return nil, err
		}
		tables[md.FullName()] = table
	}

	reg := validate.NewRegistry()
	constrained := 0
	for _, md := range s.Messages() {
		table, ok := tables[md.FullName()]
		if !ok {
			table = validate.MessageRules{DefaultDelegation: defaultDelegation}
		}
		if err := reg.RegisterRules(md, table); err != nil {
			return nil, err
		}
		if ok {
			constrained++
			log.WithFields(logrus.Fields{
				"message": md.FullName(),
				"fields":  len(table.Fields),
			}).Debug("Compiled message rules")
		}
	}
	reg.Seal()

	log.WithFields(logrus.Fields{
		"validators":  reg.Len(),
		"constrained": constrained,
	}).Info("Built validator registry")
	return reg, nil
}

// LoadSchema compiles the proto files the manifest names.
func (m *Manifest) LoadSchema(ctx context.Context) (*schema.Schema, error) {
	return schema.Load(ctx, m.ImportPaths(), m.Proto.Files...)
}

// MessageRules converts the manifest entry of one message into a rule table.
func MessageRules(md protoreflect.MessageDescriptor, spec MessageSpec, defaultDelegation validate.Delegation) (validate.MessageRules, error) {
	table := validate.MessageRules{DefaultDelegation: defaultDelegation}
	if spec.Delegation != "" {
		d, err := validate.ParseDelegation(spec.Delegation)
		if err != nil {
			return table, &validate.ConfigError{Type: md.FullName(), Err: err}
		}
		table.DefaultDelegation = d
	}

	for _, name := range sortedKeys(spec.Fields) {
		fr, err := fieldRules(md, protoreflect.Name(name), spec.Fields[name])
		if err != nil {
			return table, err
		}
		table.Fields = append(table.Fields, fr)
	}
	return table, nil
}

func fieldRules(md protoreflect.MessageDescriptor, name protoreflect.Name, spec FieldSpec) (validate.FieldRules, error) {
	fr := validate.FieldRules{Name: name}
	fd := md.Fields().ByName(name)
	if fd == nil {
		return fr, &validate.ConfigError{Type: md.FullName(), Field: string(name), Err: validate.ErrUnknownField}
	}
	fail := func(err error) (validate.FieldRules, error) {
		return fr, &validate.ConfigError{Type: md.FullName(), Field: string(name), Err: err}
	}

	d, err := validate.ParseDelegation(spec.Delegation)
	if err != nil {
		return fail(err)
	}
	fr.Delegation = d

	if spec.Required {
		fr.Constraints = append(fr.Constraints, validate.Required{})
	}

	if spec.GT != nil && spec.GTE != nil {
		return fail(fmt.Errorf("%w: gt and gte both set", validate.ErrInvalidRule))
	}
	if spec.LT != nil && spec.LTE != nil {
		return fail(fmt.Errorf("%w: lt and lte both set", validate.ErrInvalidRule))
	}
	lower, err := bound(fd, spec.GT, spec.GTE)
	if err != nil {
		return fail(err)
	}
	upper, err := bound(fd, spec.LT, spec.LTE)
	if err != nil {
		return fail(err)
	}
	switch {
	case lower != nil && upper != nil:
		fr.Constraints = append(fr.Constraints, validate.Range{Lower: lower, Upper: upper})
	case lower != nil:
		op := validate.OpGT
		if lower.Inclusive {
			op = validate.OpGTE
		}
		fr.Constraints = append(fr.Constraints, validate.Comparison{Op: op, Bound: lower.Value})
	case upper != nil:
		op := validate.OpLT
		if upper.Inclusive {
			op = validate.OpLTE
		}
		fr.Constraints = append(fr.Constraints, validate.Comparison{Op: op, Bound: upper.Value})
	}

	if spec.MinLen != nil || spec.MaxLen != nil {
		l := validate.Length{Min: -1, Max: -1}
		if spec.MinLen != nil {
			l.Min = *spec.MinLen
		}
		if spec.MaxLen != nil {
			l.Max = *spec.MaxLen
		}
		if (spec.MinLen != nil && l.Min < 0) || (spec.MaxLen != nil && l.Max < 0) {
			return fail(fmt.Errorf("%w: negative length", validate.ErrInvalidRule))
		}
		fr.Constraints = append(fr.Constraints, l)
	}

	if spec.Pattern != "" {
		p, err := validate.MatchPattern(spec.Pattern)
		if err != nil {
			return fail(err)
		}
		fr.Constraints = append(fr.Constraints, p)
	}

	if spec.Format != "" {
		fr.Constraints = append(fr.Constraints, validate.Format{Name: spec.Format})
	}

	return fr, nil
}

// bound parses whichever of exclusive or inclusive is set in the numeric
// kind of fd. Enum fields also accept value names.
func bound(fd protoreflect.FieldDescriptor, exclusive, inclusive *Bound) (*validate.Bound, error) {
	b, isInclusive := exclusive, false
	if inclusive != nil {
		b, isInclusive = inclusive, true
	}
	if b == nil {
		return nil, nil
	}

	kind := validate.FieldNumberKind(fd.Kind())
	if fd.IsMap() || kind == validate.NumberInvalid {
		return nil, fmt.Errorf("%w: numeric bound on %s field", validate.ErrKindMismatch, fd.Kind())
	}

	if fd.Kind() == protoreflect.EnumKind {
		if v := fd.Enum().Values().ByName(protoreflect.Name(b.Raw)); v != nil {
			return &validate.Bound{Value: validate.Int(int64(v.Number())), Inclusive: isInclusive}, nil
		}
	}

	n, err := validate.ParseNumber(kind, b.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bound %q is not a valid %s: %v", validate.ErrInvalidRule, b.Raw, kind, err)
	}
	return &validate.Bound{Value: n, Inclusive: isInclusive}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
