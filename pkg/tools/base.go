// Package tools implements the agent loop's tool-calling surface: the Tool
// interface every callable implements, the ToolResult contract errors are
// reported through, and concrete tools (filesystem, shell, web search,
// messaging, image generation, sub-agent spawning).
package tools

import "context"

// Tool is one callable the agent loop can invoke. Name must be stable and
// unique within a registry; Parameters returns a JSON Schema object
// describing the call's arguments.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *ToolResult
}

// ToolResult is how every tool reports its outcome. Tool errors are never
// returned as Go errors to the LLM loop — a failed lookup, a bad argument,
// a denied path all come back as a ToolResult with IsError set, so the LLM
// sees the failure as conversational content it can react to instead of the
// loop aborting.
type ToolResult struct {
	// ForLLM is what the model sees in the tool result turn.
	ForLLM string
	// ForUser optionally overrides what the human sees when the channel
	// surfaces tool activity; empty means derive from ForLLM.
	ForUser string
	// Silent suppresses any user-facing notification of this tool call
	// (used by message, which already delivered the content itself).
	Silent bool
	// IsError marks ForLLM as a failure description.
	IsError bool
	// Async marks a tool call whose real effect happens out of band
	// (e.g. a streamed message already sent).
	Async bool
	// Err is the underlying Go error, if any, for logging — never
	// surfaced to the LLM directly.
	Err error
}

// WithError attaches the underlying error to a result for logging while
// leaving ForLLM as the human-readable message already set.
func (r *ToolResult) WithError(err error) *ToolResult {
	r.Err = err
	return r
}

// ErrorResult builds an error ToolResult from a plain message.
func ErrorResult(msg string) *ToolResult {
	return &ToolResult{ForLLM: msg, IsError: true}
}

// SilentResult builds a successful ToolResult that produces no separate
// user-facing notification.
func SilentResult(msg string) *ToolResult {
	return &ToolResult{ForLLM: msg, Silent: true}
}
