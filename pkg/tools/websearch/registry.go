package websearch

import "fmt"

// autoPriority is the order SelectAuto tries backends in: exa first (best
// quality), then brave, falling back to the always-available ddgs scrape.
var autoPriority = []string{"exa", "brave", "ddgs"}

// Registry builds Backend instances from configured API keys.
type Registry struct {
	braveAPIKey string
	exaAPIKey   string
}

// NewRegistry builds a registry carrying the configured provider API keys.
func NewRegistry(braveAPIKey, exaAPIKey string) *Registry {
	return &Registry{braveAPIKey: braveAPIKey, exaAPIKey: exaAPIKey}
}

// Create builds the named backend, or nil if the name is unknown.
func (r *Registry) Create(name string) Backend {
	switch name {
	case "exa":
		return NewExaBackend(r.exaAPIKey)
	case "brave":
		return NewBraveBackend(r.braveAPIKey)
	case "ddgs":
		return NewDDGSBackend()
	default:
		return nil
	}
}

// SelectAuto picks the first available backend in priority order
// (exa → brave → ddgs), falling back to ddgs even if unavailable so callers
// always get a non-nil backend to report a useful error from.
func (r *Registry) SelectAuto() (Backend, error) {
	for _, name := range autoPriority {
		b := r.Create(name)
		if b != nil && b.IsAvailable() {
			return b, nil
		}
	}
	if ddgs := r.Create("ddgs"); ddgs != nil {
		return ddgs, nil
	}
	return nil, fmt.Errorf("websearch: no backend available")
}
