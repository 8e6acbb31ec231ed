package fetcher

import (
	"fmt"
	"sync"
)

type listKey struct {
	kind   string
	method string
}

// Registry is a capability table mapping kinds to their list and parse
// operations. Providers fill it at setup; the workers only look callables up.
type Registry struct {
	mu       sync.RWMutex
	listers  map[listKey]ListFunc
	parsers  map[string]ParseFunc
	defaults []Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		listers: make(map[listKey]ListFunc),
		parsers: make(map[string]ParseFunc),
	}
}

// RegisterList registers the list operation named method for kind.
func (r *Registry) RegisterList(kind, method string, fn ListFunc) {
	if fn == nil {
		panic(fmt.Sprintf("fetcher: nil list func for %s.%s", kind, method))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listers[listKey{kind: kind, method: method}] = fn
}

// RegisterParse registers the parse operation for kind.
func (r *Registry) RegisterParse(kind string, fn ParseFunc) {
	if fn == nil {
		panic(fmt.Sprintf("fetcher: nil parse func for %s", kind))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[kind] = fn
}

// AddDefault appends a descriptor to the list fetched when FetchAll receives
// no descriptors.
func (r *Registry) AddDefault(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = append(r.defaults, d)
}

// Lister implements Provider.
func (r *Registry) Lister(kind, method string) (ListFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.listers[listKey{kind: kind, method: method}]
	if !ok {
		return nil, &MethodResolutionError{Kind: kind, Method: method, Err: ErrMethodNotFound}
	}
	return fn, nil
}

// Parser implements Provider.
func (r *Registry) Parser(kind string) (ParseFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.parsers[kind]
	if !ok {
		return nil, &MethodResolutionError{Kind: kind, Err: ErrMethodNotFound}
	}
	return fn, nil
}

// Defaults implements DefaultsProvider.
func (r *Registry) Defaults() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, len(r.defaults))
	copy(out, r.defaults)
	return out
}

// Kinds returns the kinds that have a parser registered.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.parsers))
	for kind := range r.parsers {
		kinds = append(kinds, kind)
	}
	return kinds
}
