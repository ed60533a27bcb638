package validate

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Registry maps message full names to their validators. It is written
// while the process initialises and read-only once sealed.
type Registry struct {
	mu         sync.RWMutex
	sealed     atomic.Bool
	validators map[protoreflect.FullName]Validator
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		validators: make(map[protoreflect.FullName]Validator),
	}
}

// Register adds the validator for a message type
func (r *Registry) Register(name protoreflect.FullName, v Validator) error {
	if v == nil {
		return fmt.Errorf("%w: nil validator for %s", ErrInvalidRule, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return ErrRegistrySealed
	}
	if _, exists := r.validators[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateValidator, name)
	}

	r.validators[name] = v
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name protoreflect.FullName, v Validator) {
	if err := r.Register(name, v); err != nil {
		panic(err)
	}
}

// RegisterRules compiles rules for md and registers the result.
func (r *Registry) RegisterRules(md protoreflect.MessageDescriptor, rules MessageRules) error {
	v, err := Compile(md, rules)
	if err != nil {
		return err
	}
	return r.Register(md.FullName(), v)
}

// Seal makes the registry read-only. It is idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed.Store(true)
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Lookup returns the validator registered for name.
func (r *Registry) Lookup(name protoreflect.FullName) (Validator, bool) {
	if r.sealed.Load() {
		v, ok := r.validators[name]
		return v, ok
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[name]
	return v, ok
}

// Names returns the registered message names, sorted.
func (r *Registry) Names() []protoreflect.FullName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]protoreflect.FullName, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Len returns the number of registered validators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.validators)
}
