package source

import (
	"net/url"
	"sync"
)

// Registry dispatches novel/chapter URLs to the source that claims their
// host. Sources registered later take priority over the pre-seeded defaults;
// when no source matches, the first-registered source is the unconditional
// fallback, so Resolve never fails.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
}

// NewRegistry seeds the registry with the default sources, in order.
func NewRegistry(defaults ...Source) *Registry {
	r := &Registry{}
	r.sources = append(r.sources, defaults...)
	return r
}

// Register adds a source with priority over everything registered before it.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	r.sources = append(r.sources, s)
	r.mu.Unlock()
}

// Resolve returns the highest-priority source whose Supports predicate
// matches the URL's host, falling back to the first-registered source.
func (r *Registry) Resolve(rawURL string) Source {
	host := hostOf(rawURL)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sources) == 0 {
		return nil
	}
	for i := len(r.sources) - 1; i >= 0; i-- {
		if r.sources[i].Supports(host) {
			return r.sources[i]
		}
	}
	return r.sources[0]
}

// Sources returns a snapshot in registration order.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
