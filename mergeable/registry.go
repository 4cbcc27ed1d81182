package mergeable

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/mergestream/errors"
)

// Factory constructs an empty Object of one kind, ready for UnmarshalJSON.
type Factory func() Object

// Registry maps kind strings to object factories. It is constructed once at
// bootstrap and passed by reference into the engine and each node; a missing
// kind fails at construction or decode time instead of crashing mid-stream.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry creates a registry with the shipped kinds registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of shipped kinds cannot collide in a fresh registry.
	_ = r.Register(KindHistogram, func() Object { return &Histogram{} })
	_ = r.Register(KindCounts, func() Object { return &Counts{} })
	return r
}

// Register adds a factory for a kind. Duplicate registrations are rejected.
func (r *Registry) Register(kind string, factory Factory) error {
	if kind == "" {
		return errors.WrapInvalid(
			fmt.Errorf("empty kind"),
			"Registry", "Register", "kind validation")
	}
	if factory == nil {
		return errors.WrapInvalid(
			fmt.Errorf("nil factory for kind %q", kind),
			"Registry", "Register", "factory validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("kind %q already registered", kind),
			"Registry", "Register", "duplicate registration")
	}
	r.factories[kind] = factory
	return nil
}

// Has reports whether a kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// New constructs an empty object of the given kind.
func (r *Registry) New(kind string) (Object, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownKind, kind),
			"Registry", "New", "kind lookup")
	}
	return factory(), nil
}

// Decode constructs an object of the given kind and unmarshals data into it.
// The decoded object is validated before being returned.
func (r *Registry) Decode(kind string, data []byte) (Object, error) {
	obj, err := r.New(kind)
	if err != nil {
		return nil, err
	}
	if err := obj.UnmarshalJSON(data); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrDeserialization, err),
			"Registry", "Decode", "payload unmarshal")
	}
	if err := obj.Validate(); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrDeserialization, err),
			"Registry", "Decode", "payload validation")
	}
	return obj, nil
}

// Kinds returns the registered kind strings in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
