// Package providers implements the LLM backend abstraction: chat
// completion with tool-calling, with Claude and OpenAI-compatible
// implementations and a fallback wrapper between them.
package providers

import (
	"context"

	"github.com/vikingbot/vikingbot/pkg/media"
)

// Message is one turn in a chat completion request. Role is one of
// "system", "user", "assistant", or "tool".
type Message struct {
	Role         string
	Content      string
	ContentParts []media.ContentPart // set on multimodal user messages, overrides Content when non-empty
	ToolCallID   string              // set on "tool" messages, echoes the call they answer
	ToolCalls    []ToolCall
}

// FunctionCall is the OpenAI-style nested function payload of a tool call.
type FunctionCall struct {
	Name      string
	Arguments string // raw JSON
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Type      string // "function" — OpenAI wire format carries this, Claude does not
	Name      string
	Arguments map[string]interface{}
	Function  *FunctionCall
}

// FunctionDef describes a callable tool in JSON Schema terms.
type FunctionDef struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolDefinition wraps a FunctionDef the way provider wire formats expect.
type ToolDefinition struct {
	Function *FunctionDef
}

// UsageInfo is token accounting for a single completion.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMResponse is a provider's answer to a Chat call.
type LLMResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string // "stop", "tool_calls", or "length"
	Usage        *UsageInfo
}

// StreamCallback receives incremental content deltas during ChatStream.
type StreamCallback func(delta string)

// LLMProvider is the minimal contract every chat backend implements.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}

// StreamingProvider is implemented by providers that can stream content
// deltas as they arrive instead of only returning the final response.
type StreamingProvider interface {
	LLMProvider
	ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}, onContent StreamCallback) (*LLMResponse, error)
}
