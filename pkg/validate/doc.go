// Package validate checks protobuf messages against declared field
// constraints.
//
// Each message type is described by a MessageRules table: for every field an
// ordered list of constraints (Required, Comparison, Range, Length, Pattern,
// Format) and, for message-typed fields, a Delegation deciding whether the
// nested message is validated too. Compile turns a table into a
// RuleValidator, one generic interpreter shared by all types.
//
// Validators are registered by message full name in a Registry. Nested
// messages are dispatched through the registry using the runtime type of
// the field value, so a validator never refers to the rules of another type.
//
//	reg := validate.NewRegistry()
//	err := reg.RegisterRules(md, validate.MessageRules{
//		Fields: []validate.FieldRules{
//			{Name: "limit", Constraints: []validate.Constraint{validate.Between(validate.Int(0), validate.Int(500))}},
//		},
//	})
//	engine := validate.New(reg, validate.WithMode(validate.AccumulateAll))
//	violations, err := engine.Validate(msg)
//
// Violations are data and come back as a value. A *ConfigError means the
// setup is broken: a reachable type without a validator, a bound of the
// wrong numeric kind, or nesting deeper than the configured limit.
//
// Optional string fields follow an emptiness-skip policy: length, pattern
// and format constraints are not applied to an empty string unless the field
// is also Required.
package validate
