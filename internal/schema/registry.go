// Package schema provides a registry for managing resource type descriptors
package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages all resource types in the application. It is built once
// at startup, validated, and read-only afterwards; concurrent reads from
// in-flight requests are safe.
type Registry struct {
	types map[string]*ResourceType
	mu    sync.RWMutex
}

// NewRegistry creates a new resource type registry
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*ResourceType),
	}
}

// Register registers a new resource type. Structural validation happens
// here; cross-type relationship targets are checked in ValidateAll so
// forward references between types are allowed.
func (r *Registry) Register(rt *ResourceType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := rt.validate(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if _, exists := r.types[rt.Name]; exists {
		return fmt.Errorf("resource type %s is already registered", rt.Name)
	}

	r.types[rt.Name] = rt
	return nil
}

// Get retrieves a resource type by name
func (r *Registry) Get(name string) (*ResourceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, exists := r.types[name]
	return rt, exists
}

// Exists checks if a resource type is registered
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.types[name]
	return exists
}

// List returns the names of all registered resource types, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of all registered resource types
func (r *Registry) All() map[string]*ResourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ResourceType, len(r.types))
	for k, v := range r.types {
		result[k] = v
	}
	return result
}

// Count returns the number of registered resource types
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.types)
}

// ValidateAll checks that every relationship target names a registered
// resource type. Call once after all types are registered.
func (r *Registry) ValidateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.types {
		for name, rel := range rt.Relationships {
			if _, ok := r.types[rel.TargetType]; !ok {
				return fmt.Errorf("resource type %s relationship %s targets unregistered type %s",
					rt.Name, name, rel.TargetType)
			}
		}
	}
	return nil
}

// Clear removes all registered resource types (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.types = make(map[string]*ResourceType)
}
