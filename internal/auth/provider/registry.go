package provider

import (
	"sort"

	"github.com/mo-sawah/sawah-register/internal/auth"
)

// Registry holds the configured OAuth providers and allows lookup by
// provider name. Only enabled, credentialed providers are registered,
// so a miss means "not configured", not a routing bug.
type Registry struct {
	providers map[string]Adapter
}

// NewRegistry registers the given providers by name.
// Provider names must be unique.
func NewRegistry(list ...Adapter) *Registry {
	m := make(map[string]Adapter)
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider by name. Unknown names surface as the
// configuration failure the login page displays.
func (r *Registry) Get(name string) (Adapter, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, auth.ErrProviderNotConfigured
	}
	return p, nil
}

// Names lists the registered providers, sorted for stable output.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
