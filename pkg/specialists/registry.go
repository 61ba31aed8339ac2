package specialists

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vikingbot/vikingbot/pkg/logger"
)

// AgentFactory builds an AgentConfig, optionally overriding the model.
type AgentFactory func(model string) AgentConfig

// Registry holds the named specialists a spawn tool can dispatch to: the
// fixed built-ins (explore, librarian) plus any workspace-defined personas
// registered via RegisterWorkspaceSpecialists.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]AgentFactory
}

// NewRegistry builds a registry with the built-in explore/librarian
// specialists already registered.
func NewRegistry() *Registry {
	r := &Registry{agents: make(map[string]AgentFactory)}
	r.mustRegister("explore", NewExploreAgent)
	r.mustRegister("librarian", NewLibrarianAgent)
	return r
}

func (r *Registry) mustRegister(name string, factory AgentFactory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Register adds a new specialist factory. It errors, rather than panics,
// if the name is already taken — callers loading workspace specialists at
// runtime need to report the conflict to the user, not crash the process.
func (r *Registry) Register(name string, factory AgentFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("specialist %q is already registered", name)
	}
	r.agents[name] = factory
	logger.DebugCF("specialist", "registered specialist", map[string]interface{}{"name": name})
	return nil
}

// Get returns the named specialist's configuration, with model applied as
// an override when non-empty.
func (r *Registry) Get(name string, model string) (AgentConfig, error) {
	r.mu.RLock()
	factory, ok := r.agents[name]
	r.mu.RUnlock()
	if !ok {
		return AgentConfig{}, fmt.Errorf("no specialist registered with name: %s", name)
	}
	return factory(model), nil
}

// List returns all registered specialist names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// RegisterWorkspaceSpecialists loads every workspace/specialists/*
// persona the loader discovers and registers it as a subagent factory,
// restricted the same way the built-in explore/librarian agents are
// (no write/edit/message/spawn) unless the persona is already taken by a
// built-in name, which is skipped with a warning rather than an error.
func (r *Registry) RegisterWorkspaceSpecialists(loader *SpecialistLoader) {
	for _, info := range loader.ListSpecialists() {
		name := info.Name
		persona, ok := loader.LoadSpecialist(name)
		if !ok {
			continue
		}
		description := info.Description
		if description == "" {
			description = fmt.Sprintf("Workspace specialist %q", name)
		}

		factory := func(persona, description string) AgentFactory {
			return func(model string) AgentConfig {
				return AgentConfig{
					Description:   description,
					Mode:          ModeSubagent,
					Model:         model,
					Temperature:   0.4,
					Prompt:        persona,
					DisabledTools: CreateToolRestrictions("write", "edit", "message", "spawn"),
				}
			}
		}(persona, description)

		if err := r.Register(name, factory); err != nil {
			logger.WarnCF("specialist", "skipping workspace specialist", map[string]interface{}{
				"name":  name,
				"error": err.Error(),
			})
		}
	}
}

// Summary renders the registered specialists as an XML block suitable for
// the primary agent's system prompt, reusing the loader's escaping.
func (r *Registry) Summary() string {
	names := r.List()
	if len(names) == 0 {
		return ""
	}
	var lines []string
	lines = append(lines, "<specialists>")
	for _, name := range names {
		cfg, err := r.Get(name, "")
		if err != nil {
			continue
		}
		lines = append(lines, "  <specialist>")
		lines = append(lines, fmt.Sprintf("    <name>%s</name>", escapeXML(name)))
		lines = append(lines, fmt.Sprintf("    <description>%s</description>", escapeXML(cfg.Description)))
		lines = append(lines, "  </specialist>")
	}
	lines = append(lines, "</specialists>")
	return strings.Join(lines, "\n")
}
