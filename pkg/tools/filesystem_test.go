package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileTool_NonSandboxed(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFileTool(&dir, nil)

	result := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "notes/today.md",
		"content": "hello",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}

	data, err := os.ReadFile(filepath.Join(dir, "notes/today.md"))
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestWriteFileTool_RejectsEscape(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFileTool(&dir, nil)

	result := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "../../etc/passwd",
		"content": "x",
	})
	if !result.IsError {
		t.Fatalf("expected error escaping allowed dir")
	}
}

func TestReadFileTool_NotFound(t *testing.T) {
	dir := t.TempDir()
	tool := NewReadFileTool(&dir, nil)

	result := tool.Execute(context.Background(), map[string]interface{}{"path": "missing.txt"})
	if !result.IsError {
		t.Fatalf("expected error for missing file")
	}
}

func TestEditFileTool_ReplacesUniqueMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tool := NewEditFileTool(&dir, nil)
	result := tool.Execute(context.Background(), map[string]interface{}{
		"path": "f.txt", "old_text": "world", "new_text": "vikingbot",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "hello vikingbot" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestEditFileTool_AmbiguousMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("a a a"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tool := NewEditFileTool(&dir, nil)
	result := tool.Execute(context.Background(), map[string]interface{}{
		"path": "f.txt", "old_text": "a", "new_text": "b",
	})
	if !result.IsError {
		t.Fatalf("expected ambiguity error")
	}
}

func TestListDirTool_ListsEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tool := NewListDirTool(&dir, nil)
	result := tool.Execute(context.Background(), map[string]interface{}{"path": "."})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	if result.ForLLM == "" {
		t.Fatalf("expected non-empty listing")
	}
}
