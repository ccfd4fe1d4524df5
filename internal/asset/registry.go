package asset

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a thread-safe registry of known networks.
type Registry struct {
	byName map[string]Network
	mu     sync.RWMutex
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Network)}
}

// DefaultRegistry returns a registry pre-populated with well-known networks.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, n := range []Network{Ethereum, BSC, Polygon, Arbitrum, Optimism, Base} {
		r.Register(n)
	}
	return r
}

// Register adds or replaces a network.
func (r *Registry) Register(n Network) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[NormalizeName(n.Name)] = n
}

// Get looks a network up by name.
func (r *Registry) Get(name string) (Network, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byName[NormalizeName(name)]
	return n, ok
}

// MustGet looks a network up by name and panics if it is unknown.
func (r *Registry) MustGet(name string) Network {
	n, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("asset: network %q not registered", name))
	}
	return n
}

// Names returns registered network names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
