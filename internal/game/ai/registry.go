package ai

import (
	"fmt"
	"sort"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
)

// Factory builds a Policy for one side.
type Factory func(side combat.Side) Policy

// Registry indexes policy factories by name.
//
// Invariant: each name is registered at most once.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register stores f under name.
//
// Precondition: name must be non-empty and f must not be nil.
// Postcondition: returns error on name collision.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("ai.Registry: name and factory must be set")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("ai.Registry: policy %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// PolicyFor builds the named policy for side, or returns false if name is not registered.
func (r *Registry) PolicyFor(name string, side combat.Side) (Policy, bool) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return f(side), true
}

// Names returns the registered policy names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
