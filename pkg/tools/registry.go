package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vikingbot/vikingbot/pkg/providers"
)

// MetadataAwareTool is implemented by tools that want the inbound message's
// metadata (thread IDs, reply targets) injected before Execute runs.
type MetadataAwareTool interface {
	SetMetadata(metadata map[string]string)
}

// ContextualTool is implemented by tools that want the originating
// channel/chat before Execute runs (message, spawn,
// consult_specialist, link_topic).
type ContextualTool interface {
	SetContext(channel, chatID string)
}

// AsyncCallback is invoked once a tool's Async work finishes, after Execute
// has already returned its initial ToolResult to the caller.
type AsyncCallback func(ctx context.Context, result *ToolResult)

// AsyncTool is implemented by tools whose Execute kicks off background work
// and wants a chance to report the outcome once it completes.
type AsyncTool interface {
	SetAsyncCallback(cb AsyncCallback)
}

// SessionScopedTool is implemented by tools that resolve paths inside a
// per-session sandbox (read_file, write_file, edit_file, list_dir, shell)
// and need the active session's key before Execute runs.
type SessionScopedTool interface {
	SetSessionKey(sessionKey string)
}

// ToolRegistry holds the set of tools available to one agent loop invocation.
// A specialist's registry is typically a filtered view of the primary
// registry (see pkg/specialists), built by omitting disabled tool names.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool, overwriting any previous tool of the same name.
func (r *ToolRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named tool, if registered.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool, sorted by name for deterministic
// prompt rendering.
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// GetSummaries renders one line per registered tool (name, description, and
// a compact parameter listing) for inclusion in the system prompt's tools
// section, in the same sorted order as All.
func (r *ToolRegistry) GetSummaries() []string {
	tools := r.All()
	summaries := make([]string, 0, len(tools))
	for _, t := range tools {
		line := fmt.Sprintf("- **%s**: %s", t.Name(), t.Description())
		if params, ok := t.Parameters()["properties"].(map[string]interface{}); ok && len(params) > 0 {
			names := make([]string, 0, len(params))
			for name := range params {
				names = append(names, name)
			}
			sort.Strings(names)
			line += fmt.Sprintf(" (args: %s)", strings.Join(names, ", "))
		}
		summaries = append(summaries, line)
	}
	return summaries
}

// List returns the names of every registered tool, sorted.
func (r *ToolRegistry) List() []string {
	all := r.All()
	names := make([]string, 0, len(all))
	for _, t := range all {
		names = append(names, t.Name())
	}
	return names
}

// WithoutNames returns a new ToolRegistry containing every tool except those
// named in disabled — used to build a specialist's restricted view of the
// primary registry without mutating it.
func (r *ToolRegistry) WithoutNames(disabled []string) *ToolRegistry {
	skip := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		skip[name] = true
	}
	out := NewToolRegistry()
	for _, t := range r.All() {
		if !skip[t.Name()] {
			out.Register(t)
		}
	}
	return out
}

// Execute looks up name and runs it, injecting context/metadata if the tool
// supports it. An unknown tool name is reported as a ToolResult error, not
// a Go error — the LLM can react to a typo'd tool name just like any other
// tool failure.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]interface{}, channel, chatID string, metadata map[string]string) *ToolResult {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}
	if ca, ok := t.(ContextualTool); ok {
		ca.SetContext(channel, chatID)
	}
	if ma, ok := t.(MetadataAwareTool); ok {
		ma.SetMetadata(metadata)
	}
	return t.Execute(ctx, args)
}

// ExecuteWithContext is Execute without inbound metadata, wiring an
// AsyncCallback and the active session key into tools that support them.
// Used by the agent loop, which tracks metadata separately via
// updateToolContexts.
func (r *ToolRegistry) ExecuteWithContext(ctx context.Context, name string, args map[string]interface{}, channel, chatID, sessionKey string, cb AsyncCallback) *ToolResult {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}
	if ca, ok := t.(ContextualTool); ok {
		ca.SetContext(channel, chatID)
	}
	if ss, ok := t.(SessionScopedTool); ok {
		ss.SetSessionKey(sessionKey)
	}
	if at, ok := t.(AsyncTool); ok && cb != nil {
		at.SetAsyncCallback(cb)
	}
	return t.Execute(ctx, args)
}

// ToProviderDefs renders every registered tool as a provider-facing
// ToolDefinition, in the same sorted order as All().
func (r *ToolRegistry) ToProviderDefs() []providers.ToolDefinition {
	all := r.All()
	defs := make([]providers.ToolDefinition, 0, len(all))
	for _, t := range all {
		defs = append(defs, providers.ToolDefinition{
			Function: &providers.FunctionDef{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
