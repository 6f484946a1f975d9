package share

import (
	"fmt"
	"sync"
)

// Registry maps item type names to their backends and records which item
// types are collections of others. It is constructed once at application
// start and injected into the engine; tests build their own.
type Registry struct {
	mu          sync.RWMutex
	backends    map[string]Backend
	collections map[string][]string // child type -> collection types
	children    map[string][]string // collection type -> child types
	onFirst     func()
	registered  bool
}

type RegistryOption func(*Registry)

// WithFirstRegistration installs the one-time side effect run when the
// first backend registers (asset/script registration lives outside this
// subsystem).
func WithFirstRegistration(fn func()) RegistryOption {
	return func(r *Registry) {
		r.onFirst = fn
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		backends:    make(map[string]Backend),
		collections: make(map[string][]string),
		children:    make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a backend for itemType, at most once. collectionOf lists
// the child item types this type aggregates; relationships form a forest.
func (r *Registry) Register(itemType string, b Backend, collectionOf ...string) error {
	if itemType == "" {
		return fmt.Errorf("%w: empty item type", ErrInvalidBackend)
	}
	if b == nil {
		return fmt.Errorf("%w: nil backend for %q", ErrInvalidBackend, itemType)
	}
	if b.ItemType() != itemType {
		return fmt.Errorf("%w: backend reports item type %q, registered as %q",
			ErrInvalidBackend, b.ItemType(), itemType)
	}
	if len(collectionOf) > 0 {
		if _, ok := b.(Collection); !ok {
			return fmt.Errorf("%w: %q registered as collection without Children support",
				ErrInvalidBackend, itemType)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[itemType]; ok {
		return fmt.Errorf("%w: %q already registered", ErrInvalidBackend, itemType)
	}
	if !r.registered && r.onFirst != nil {
		r.onFirst()
	}
	r.registered = true
	r.backends[itemType] = b
	for _, child := range collectionOf {
		r.collections[child] = append(r.collections[child], itemType)
		r.children[itemType] = append(r.children[itemType], child)
	}
	return nil
}

// Resolve returns the backend for itemType.
func (r *Registry) Resolve(itemType string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[itemType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, itemType)
	}
	return b, nil
}

// CollectionsOf lists item types whose instances aggregate children of
// childType.
func (r *Registry) CollectionsOf(childType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.collections[childType]))
	copy(out, r.collections[childType])
	return out
}

// ChildTypesOf lists the child item types of collectionType.
func (r *Registry) ChildTypesOf(collectionType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.children[collectionType]))
	copy(out, r.children[collectionType])
	return out
}
