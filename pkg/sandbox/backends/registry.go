// Package backends holds SandboxBackend implementations and the registry
// SandboxManager resolves a configured backend name through.
package backends

import (
	"fmt"
	"sync"

	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/sandbox"
)

// Factory constructs a backend instance for one session's sandbox.
type Factory func(cfg config.SandboxConfig, sessionKey, workspace string) sandbox.Backend

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds a backend factory under name. Called once per backend from
// that backend's init(); registering the same name twice panics, since that
// can only happen from a programming error, not runtime input.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("sandbox/backends: backend %q already registered", name))
	}
	factories[name] = f
}

// Get resolves a backend factory by name. ok is false for unknown names.
func Get(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// List returns the names of every registered backend.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
