// Package registry owns the flows known to a session, keyed by unique name.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ormasoftchile/stepflow/pkg/flow"
)

var (
	// ErrFlowNotFound matches every *NotFoundError via errors.Is.
	ErrFlowNotFound = errors.New("flow not found")
	// ErrFlowExists is returned when creating a flow whose name is taken.
	ErrFlowExists = errors.New("flow already exists")
	// ErrInvalidName is returned for blank flow names.
	ErrInvalidName = errors.New("invalid flow name")
)

// NotFoundError reports a flow name absent from the registry.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("flow not found: %s", e.Name) }

func (e *NotFoundError) Is(target error) bool { return target == ErrFlowNotFound }

// Registry holds flows in insertion order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	flows map[string]*flow.Flow
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{flows: make(map[string]*flow.Flow)}
}

// Names are compared with surrounding whitespace removed.
func normalize(name string) string { return strings.TrimSpace(name) }

// Create registers a new empty flow. Names are unique: creating a name that
// is already registered fails with ErrFlowExists.
func (r *Registry) Create(name string) (*flow.Flow, error) {
	name = normalize(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowExists, name)
	}
	f := flow.New(name)
	r.flows[name] = f
	r.order = append(r.order, name)
	return f, nil
}

// Delete removes a flow and every step it owns.
func (r *Registry) Delete(name string) error {
	name = normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[name]; !ok {
		return &NotFoundError{Name: name}
	}
	delete(r.flows, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Lookup returns the flow registered under name.
func (r *Registry) Lookup(name string) (*flow.Flow, error) {
	name = normalize(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return f, nil
}

// List returns the registered names in insertion order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered flows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Clear drops every flow.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.flows = make(map[string]*flow.Flow)
}
