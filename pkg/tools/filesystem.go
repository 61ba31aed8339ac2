package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vikingbot/vikingbot/pkg/sandbox"
)

// SandboxProvider resolves a session key to its sandbox backend, letting
// filesystem tools stay agnostic of per-session vs shared allocation.
type SandboxProvider interface {
	GetSandbox(ctx context.Context, sessionKey string) (sandbox.Backend, error)
}

// sessionScoped is embedded by every filesystem tool: it resolves either a
// sandbox-relative path (when a sandbox manager and session key are set) or
// a host path restricted to allowedDir (the non-sandboxed branch, see
// DESIGN.md Open Question 2).
type sessionScoped struct {
	allowedDir      *string
	sandboxManager  SandboxProvider
	sessionKey      string
}

// SetSessionKey binds the session this tool instance operates for.
func (s *sessionScoped) SetSessionKey(sessionKey string) {
	s.sessionKey = sessionKey
}

func resolveHostPath(path string, allowedDir *string) (string, error) {
	expanded := path
	if strings.HasPrefix(expanded, "~") {
		home, _ := os.UserHomeDir()
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
	}
	resolved, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	if allowedDir != nil {
		allowedAbs, err := filepath.Abs(*allowedDir)
		if err != nil {
			return "", err
		}
		if !strings.HasPrefix(resolved, allowedAbs) {
			return "", fmt.Errorf("path %s is outside allowed directory %s", path, *allowedDir)
		}
	}
	return resolved, nil
}

// resolveSandboxPath maps an in-sandbox path argument to the absolute host
// path of the sandbox's workspace, rejecting escapes.
func resolveSandboxPath(path string, ws string) (string, bool) {
	if filepath.IsAbs(path) {
		if path == "/" {
			return ws, true
		}
		resolved := path
		wsAbs, _ := filepath.Abs(ws)
		if !strings.HasPrefix(resolved, wsAbs) {
			return "", false
		}
		return resolved, true
	}
	return filepath.Join(ws, path), true
}

// ReadFileTool reads a file's contents, either from a session's sandbox
// workspace or, when no sandbox manager is configured, directly from the
// host within allowedDir.
type ReadFileTool struct {
	sessionScoped
}

func NewReadFileTool(allowedDir *string, sandboxManager SandboxProvider) *ReadFileTool {
	return &ReadFileTool{sessionScoped{allowedDir: allowedDir, sandboxManager: sandboxManager}}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file at the given path." }
func (t *ReadFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string", "description": "The file path to read"},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	path, _ := args["path"].(string)
	if path == "" {
		return ErrorResult("path is required")
	}

	if t.sandboxManager != nil && t.sessionKey != "" {
		sb, err := t.sandboxManager.GetSandbox(ctx, t.sessionKey)
		if err != nil {
			return ErrorResult(fmt.Sprintf("Error: %v", err))
		}
		resolved, ok := resolveSandboxPath(path, sb.Workspace())
		if !ok {
			return ErrorResult(fmt.Sprintf("Error: Absolute path outside sandbox: %s", path))
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return ErrorResult(fmt.Sprintf("Error: File not found: %s", path))
		}
		if info.IsDir() {
			return ErrorResult(fmt.Sprintf("Error: Not a file: %s", path))
		}
		content, err := os.ReadFile(resolved)
		if err != nil {
			return ErrorResult(fmt.Sprintf("Error reading file: %v", err))
		}
		return &ToolResult{ForLLM: string(content)}
	}

	resolved, err := resolveHostPath(path, t.allowedDir)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error: %v", err))
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error: File not found: %s", path))
	}
	if info.IsDir() {
		return ErrorResult(fmt.Sprintf("Error: Not a file: %s", path))
	}
	content, err := os.ReadFile(resolved)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error reading file: %v", err))
	}
	return &ToolResult{ForLLM: string(content)}
}

// WriteFileTool writes content to a file, creating parent directories as
// needed, in either the sandbox or (non-sandboxed branch) the host within
// allowedDir.
type WriteFileTool struct {
	sessionScoped
}

func NewWriteFileTool(allowedDir *string, sandboxManager SandboxProvider) *WriteFileTool {
	return &WriteFileTool{sessionScoped{allowedDir: allowedDir, sandboxManager: sandboxManager}}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file at the given path. Creates parent directories if needed."
}
func (t *WriteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":    map[string]interface{}{"type": "string", "description": "The file path to write to"},
			"content": map[string]interface{}{"type": "string", "description": "The content to write"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	path, _ := args["path"].(string)
	content, ok := args["content"].(string)
	if path == "" || !ok {
		return ErrorResult("path and content are required")
	}

	if t.sandboxManager != nil && t.sessionKey != "" {
		sb, err := t.sandboxManager.GetSandbox(ctx, t.sessionKey)
		if err != nil {
			return ErrorResult(fmt.Sprintf("Error: %v", err))
		}
		if filepath.IsAbs(path) {
			resolved, ok := resolveSandboxPath(path, sb.Workspace())
			if !ok {
				return ErrorResult(fmt.Sprintf("Error: Absolute path outside sandbox: %s", path))
			}
			return writeFileAt(resolved, content, path)
		}
		return writeFileAt(filepath.Join(sb.Workspace(), path), content, path)
	}

	resolved, err := resolveHostPath(path, t.allowedDir)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error writing file: %v", err))
	}
	return writeFileAt(resolved, content, path)
}

func writeFileAt(resolved, content, originalPath string) *ToolResult {
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return ErrorResult(fmt.Sprintf("Error writing file: %v", err))
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return ErrorResult(fmt.Sprintf("Error writing file: %v", err))
	}
	return &ToolResult{ForLLM: fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), originalPath)}
}

// EditFileTool replaces an exact text span within a file.
type EditFileTool struct {
	sessionScoped
}

func NewEditFileTool(allowedDir *string, sandboxManager SandboxProvider) *EditFileTool {
	return &EditFileTool{sessionScoped{allowedDir: allowedDir, sandboxManager: sandboxManager}}
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Edit a file by replacing old_text with new_text. The old_text must exist exactly in the file."
}
func (t *EditFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":     map[string]interface{}{"type": "string", "description": "The file path to edit"},
			"old_text": map[string]interface{}{"type": "string", "description": "The exact text to find and replace"},
			"new_text": map[string]interface{}{"type": "string", "description": "The text to replace with"},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	path, _ := args["path"].(string)
	oldText, ok1 := args["old_text"].(string)
	newText, ok2 := args["new_text"].(string)
	if path == "" || !ok1 || !ok2 {
		return ErrorResult("path, old_text and new_text are required")
	}

	var resolved string
	if t.sandboxManager != nil && t.sessionKey != "" {
		if filepath.IsAbs(path) {
			return ErrorResult(fmt.Sprintf("Error: Absolute paths are not allowed in sandbox: %s", path))
		}
		sb, err := t.sandboxManager.GetSandbox(ctx, t.sessionKey)
		if err != nil {
			return ErrorResult(fmt.Sprintf("Error: %v", err))
		}
		resolved = filepath.Join(sb.Workspace(), path)
	} else {
		r, err := resolveHostPath(path, t.allowedDir)
		if err != nil {
			return ErrorResult(fmt.Sprintf("Error editing file: %v", err))
		}
		resolved = r
	}

	if _, err := os.Stat(resolved); err != nil {
		return ErrorResult(fmt.Sprintf("Error: File not found: %s", path))
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error editing file: %v", err))
	}
	content := string(data)

	if !strings.Contains(content, oldText) {
		return ErrorResult("Error: old_text not found in file. Make sure it matches exactly.")
	}
	count := strings.Count(content, oldText)
	if count > 1 {
		return ErrorResult(fmt.Sprintf("Warning: old_text appears %d times. Please provide more context to make it unique.", count))
	}

	newContent := strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(resolved, []byte(newContent), 0o644); err != nil {
		return ErrorResult(fmt.Sprintf("Error editing file: %v", err))
	}
	return &ToolResult{ForLLM: fmt.Sprintf("Successfully edited %s", path)}
}

// ListDirTool lists a directory's contents, one entry per line, prefixed by
// a folder or file glyph.
type ListDirTool struct {
	sessionScoped
}

func NewListDirTool(allowedDir *string, sandboxManager SandboxProvider) *ListDirTool {
	return &ListDirTool{sessionScoped{allowedDir: allowedDir, sandboxManager: sandboxManager}}
}

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List the contents of a directory." }
func (t *ListDirTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string", "description": "The directory path to list"},
		},
		"required": []string{"path"},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	path, _ := args["path"].(string)
	if path == "" {
		return ErrorResult("path is required")
	}

	var resolved string
	if t.sandboxManager != nil && t.sessionKey != "" {
		sb, err := t.sandboxManager.GetSandbox(ctx, t.sessionKey)
		if err != nil {
			return ErrorResult(fmt.Sprintf("Error: %v", err))
		}
		r, ok := resolveSandboxPath(path, sb.Workspace())
		if !ok {
			return ErrorResult(fmt.Sprintf("Error: Absolute path outside sandbox: %s", path))
		}
		resolved = r
	} else {
		r, err := resolveHostPath(path, t.allowedDir)
		if err != nil {
			return ErrorResult(fmt.Sprintf("Error listing directory: %v", err))
		}
		resolved = r
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error: Directory not found: %s", path))
	}
	if !info.IsDir() {
		return ErrorResult(fmt.Sprintf("Error: Not a directory: %s", path))
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error listing directory: %v", err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		return &ToolResult{ForLLM: fmt.Sprintf("Directory %s is empty", path)}
	}

	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		byName[e.Name()] = e
	}
	lines := make([]string, 0, len(names))
	for _, name := range names {
		prefix := "file: "
		if byName[name].IsDir() {
			prefix = "dir:  "
		}
		lines = append(lines, prefix+name)
	}
	return &ToolResult{ForLLM: strings.Join(lines, "\n")}
}
