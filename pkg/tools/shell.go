package tools

import (
	"context"
	"fmt"
)

// ShellTool runs a shell command inside the caller's sandbox. Unlike the
// filesystem tools, it has no host fallback: running arbitrary shell
// commands on the gateway host is out of scope regardless of sandbox
// configuration, so a session with sandboxing disabled simply can't use it.
type ShellTool struct {
	sandboxManager SandboxProvider
	sessionKey     string
	timeoutSeconds int
}

func NewShellTool(sandboxManager SandboxProvider, timeoutSeconds int) *ShellTool {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	return &ShellTool{sandboxManager: sandboxManager, timeoutSeconds: timeoutSeconds}
}

func (t *ShellTool) SetSessionKey(sessionKey string) {
	t.sessionKey = sessionKey
}

func (t *ShellTool) Name() string { return "shell" }
func (t *ShellTool) Description() string {
	return "Run a shell command inside the sandboxed workspace and return its combined output."
}
func (t *ShellTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{"type": "string", "description": "The shell command to run"},
			"timeout": map[string]interface{}{"type": "integer", "description": "Optional timeout in seconds"},
		},
		"required": []string{"command"},
	}
}

func (t *ShellTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	command, _ := args["command"].(string)
	if command == "" {
		return ErrorResult("command is required")
	}
	if t.sandboxManager == nil || t.sessionKey == "" {
		return ErrorResult("shell execution requires a sandboxed session")
	}

	timeout := t.timeoutSeconds
	if v, ok := args["timeout"].(float64); ok && v > 0 {
		timeout = int(v)
	}

	sb, err := t.sandboxManager.GetSandbox(ctx, t.sessionKey)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error: %v", err)).WithError(err)
	}

	output, err := sb.Execute(ctx, command, timeout)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error: %v", err)).WithError(err)
	}
	return &ToolResult{ForLLM: output}
}
