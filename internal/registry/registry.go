package registry

import (
	"sync"
)

// Registry holds the services announced by downstream locks, keyed by domain.
//
// One mutex guards the whole map. Every read and every write holds it for the
// duration of its access to the map and nothing longer: callers render and
// write responses from the copy returned by Snapshot, never from live state.
type Registry struct {
	mu      sync.Mutex
	domains map[string][]Service // domain -> services, as last registered
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		domains: make(map[string][]Service),
	}
}

// Register stores services under domain, replacing whatever the domain held
// before. The list is copied, so the caller may reuse its slice afterwards.
// The registration is echoed back unchanged.
func (r *Registry) Register(reg Registration) Registration {
	services := cloneServices(reg.Services)

	r.mu.Lock()
	r.domains[reg.Domain] = services
	r.mu.Unlock()

	return reg
}

// Snapshot returns a deep copy of the full mapping taken under a single lock
// acquisition. No domain is ever observed half-written.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := make(Snapshot, len(r.domains))
	for domain, services := range r.domains {
		snap[domain] = cloneServices(services)
	}
	return snap
}

// Lookup returns a copy of the services registered for domain.
func (r *Registry) Lookup(domain string) ([]Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	services, ok := r.domains[domain]
	if !ok {
		return nil, false
	}
	return cloneServices(services), true
}

// Len returns the number of registered domains.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.domains)
}

func cloneServices(in []Service) []Service {
	if in == nil {
		return []Service{}
	}
	out := make([]Service, len(in))
	copy(out, in)
	return out
}
