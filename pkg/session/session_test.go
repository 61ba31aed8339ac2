package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vikingbot/vikingbot/pkg/providers"
)

func TestAddMessageThenSavePersists(t *testing.T) {
	dir := t.TempDir()
	m := NewSessionManager(dir)

	m.AddMessage("telegram:123", "user", "hello")
	if err := m.Save("telegram:123"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	history := m.GetHistory("telegram:123")
	if len(history) != 1 || history[0].Content != "hello" {
		t.Fatalf("unexpected history: %+v", history)
	}

	m2 := NewSessionManager(dir)
	reloaded := m2.GetHistory("telegram:123")
	if len(reloaded) != 1 || reloaded[0].Content != "hello" {
		t.Fatalf("expected persisted history to survive reload, got %+v", reloaded)
	}
}

func TestGetOrCreateCancelOnDelete(t *testing.T) {
	dir := t.TempDir()
	m := NewSessionManager(dir)
	ctx := context.Background()

	_, loopCtx := m.GetOrCreate(ctx, "cli:direct")
	m.AddMessage("cli:direct", "user", "hi")
	if err := m.Save("cli:direct"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := m.Delete("cli:direct"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if loopCtx.Err() == nil {
		t.Fatalf("expected loop ctx to be cancelled after Delete")
	}
	if _, err := os.ReadFile(filepath.Join(dir, "cli_direct.json")); err == nil {
		t.Fatalf("expected session file to be removed")
	}
}

func TestCompressKeepsTailAndSummary(t *testing.T) {
	dir := t.TempDir()
	m := NewSessionManager(dir)

	for i := 0; i < 6; i++ {
		m.AddMessage("k", "user", "msg")
	}
	if err := m.Compress("k", "summary of earlier turns", 2); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	history := m.GetHistory("k")
	if len(history) != 2 {
		t.Fatalf("expected only the last 2 messages kept, got %d", len(history))
	}
	if m.GetSummary("k") != "summary of earlier turns" {
		t.Fatalf("expected summary to be set, got %q", m.GetSummary("k"))
	}
}

func TestExtractPairsUserAndAssistantMessages(t *testing.T) {
	dir := t.TempDir()
	m := NewSessionManager(dir)
	ctx := context.Background()

	m.AddFullMessage("k", providers.Message{Role: "user", Content: "what is go"})
	m.AddFullMessage("k", providers.Message{Role: "assistant", Content: "a programming language"})
	m.AddFullMessage("k", providers.Message{Role: "tool", Content: "irrelevant", ToolCallID: "1"})

	var pairs [][2]string
	m.Extract(ctx, "k", func(_ context.Context, userMsg, assistantMsg string) {
		pairs = append(pairs, [2]string{userMsg, assistantMsg})
	})

	if len(pairs) != 1 || pairs[0][0] != "what is go" || pairs[0][1] != "a programming language" {
		t.Fatalf("unexpected extracted pairs: %+v", pairs)
	}
}
