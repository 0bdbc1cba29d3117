package rehearsal

import (
	"fmt"
	"sort"
)

// Registry maps call site identifiers to their descriptors.
// It is built once at process start and never mutated afterwards, so it is
// safe for concurrent use without locking.
type Registry struct {
	descriptors map[string]*Descriptor
}

// NewRegistry validates and indexes descs.
// Duplicate identifiers and malformed descriptors are rejected.
func NewRegistry(descs ...*Descriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]*Descriptor, len(descs))}
	for _, d := range descs {
		if d == nil {
			return nil, fmt.Errorf("registry: nil descriptor")
		}
		if err := d.check(); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		if _, exists := r.descriptors[d.id]; exists {
			return nil, fmt.Errorf("registry: duplicate call site %q", d.id)
		}
		r.descriptors[d.id] = d
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
// Intended for package-level registries built from static definitions.
func MustRegistry(descs ...*Descriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Describe returns the descriptor registered for id.
func (r *Registry) Describe(id string) (*Descriptor, error) {
	d, ok := r.descriptors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCallSite, id)
	}
	return d, nil
}

// CallSites returns the registered identifiers in sorted order.
func (r *Registry) CallSites() []string {
	ids := make([]string, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
