package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vikingbot/vikingbot/pkg/logger"
	"github.com/vikingbot/vikingbot/pkg/providers"
)

// ToolLoopConfig configures a self-contained tool-calling loop, used by
// spawn and consult_specialist to run an isolated conversation
// to completion without touching session history or the message bus.
type ToolLoopConfig struct {
	Provider      providers.LLMProvider
	Model         string
	Tools         *ToolRegistry
	MaxIterations int
	LLMOptions    map[string]interface{}
}

// ToolLoopResult is what a sub-agent or specialist consultation returns to
// its caller.
type ToolLoopResult struct {
	Content    string
	Iterations int
}

// RunToolLoop drives messages through cfg.Provider, executing any
// requested tool calls against cfg.Tools, until the model answers without
// requesting further tools or MaxIterations is reached. Unlike the primary
// agent loop, it keeps no session history and never touches the message
// bus — its full state lives in the messages slice.
func RunToolLoop(ctx context.Context, cfg ToolLoopConfig, messages []providers.Message, channel, chatID string) (*ToolLoopResult, error) {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}

	toolDefs := cfg.Tools.ToProviderDefs()
	iteration := 0

	for iteration < maxIterations {
		iteration++

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("tool loop cancelled: %w", err)
		}

		response, err := cfg.Provider.Chat(ctx, messages, toolDefs, cfg.Model, cfg.LLMOptions)
		if err != nil {
			return nil, fmt.Errorf("tool loop LLM call failed: %w", err)
		}

		if len(response.ToolCalls) == 0 {
			return &ToolLoopResult{Content: response.Content, Iterations: iteration}, nil
		}

		assistantMsg := providers.Message{Role: "assistant", Content: response.Content}
		for _, tc := range response.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, providers.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: &providers.FunctionCall{
					Name:      tc.Name,
					Arguments: string(argsJSON),
				},
			})
		}
		messages = append(messages, assistantMsg)

		for _, tc := range response.ToolCalls {
			logger.DebugCF("tool_loop", "executing tool call", map[string]interface{}{
				"tool":      tc.Name,
				"iteration": iteration,
			})

			result := cfg.Tools.Execute(ctx, tc.Name, tc.Arguments, channel, chatID, nil)

			contentForLLM := result.ForLLM
			if contentForLLM == "" && result.Err != nil {
				contentForLLM = result.Err.Error()
			}

			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    contentForLLM,
				ToolCallID: tc.ID,
			})
		}
	}

	return nil, fmt.Errorf("tool loop exceeded %d iterations without a final answer", maxIterations)
}
