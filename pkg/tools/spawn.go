package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/vikingbot/vikingbot/pkg/providers"
	"github.com/vikingbot/vikingbot/pkg/specialists"
)

// SpawnTool runs a fresh agent loop instance under a named SubAgent
// configuration (explore, librarian, or a workspace-defined specialist),
// with a tool set filtered by that specialist's disabled_tools, and
// returns its final text.
type SpawnTool struct {
	registry      *specialists.Registry
	parentTools   *ToolRegistry
	provider      providers.LLMProvider
	defaultModel  string
	maxIterations int
	originChannel string
	originChatID  string
}

func NewSpawnTool(registry *specialists.Registry, parentTools *ToolRegistry, provider providers.LLMProvider, defaultModel string, maxIterations int) *SpawnTool {
	return &SpawnTool{
		registry:      registry,
		parentTools:   parentTools,
		provider:      provider,
		defaultModel:  defaultModel,
		maxIterations: maxIterations,
		originChannel: "cli",
		originChatID:  "direct",
	}
}

func (t *SpawnTool) Name() string { return "spawn" }

func (t *SpawnTool) Description() string {
	names := t.registry.List()
	desc := "Delegate a task to a named specialist sub-agent. It runs independently, with its own restricted tool set, and returns its final result."
	if len(names) > 0 {
		desc += " Available agents: " + strings.Join(names, ", ") + "."
	}
	return desc
}

func (t *SpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"agent_name": map[string]interface{}{
				"type":        "string",
				"description": "Name of the registered specialist to run (e.g. explore, librarian)",
			},
			"prompt": map[string]interface{}{
				"type":        "string",
				"description": "The task or question to hand to the specialist",
			},
		},
		"required": []string{"agent_name", "prompt"},
	}
}

func (t *SpawnTool) SetContext(channel, chatID string) {
	t.originChannel = channel
	t.originChatID = chatID
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	agentName, _ := args["agent_name"].(string)
	prompt, _ := args["prompt"].(string)

	if strings.TrimSpace(agentName) == "" {
		return ErrorResult("agent_name is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return ErrorResult("prompt is required")
	}

	cfg, err := t.registry.Get(agentName, "")
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error: %v. Available agents: %s", err, strings.Join(t.registry.List(), ", "))).WithError(err)
	}

	model := t.defaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}

	restrictedTools := t.parentTools.WithoutNames(cfg.DisabledTools)

	messages := []providers.Message{
		{Role: "system", Content: cfg.Prompt},
		{Role: "user", Content: prompt},
	}

	loopResult, err := RunToolLoop(ctx, ToolLoopConfig{
		Provider:      t.provider,
		Model:         model,
		Tools:         restrictedTools,
		MaxIterations: t.maxIterations,
		LLMOptions: map[string]interface{}{
			"max_tokens":  4096,
			"temperature": cfg.Temperature,
		},
	}, messages, t.originChannel, t.originChatID)
	if err != nil {
		return ErrorResult(fmt.Sprintf("spawn(%s) failed: %v", agentName, err)).WithError(err)
	}

	return &ToolResult{
		ForLLM:  fmt.Sprintf("Sub-agent '%s' completed (iterations: %d):\n\n%s", agentName, loopResult.Iterations, loopResult.Content),
		ForUser: fmt.Sprintf("%s finished.", agentName),
	}
}
