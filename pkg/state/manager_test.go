package state

import (
	"testing"
)

func TestManagerLastChannelAndChatIDRoundTrip(t *testing.T) {
	m := NewManager(t.TempDir())
	if m.LastChannel() != "" || m.LastChatID() != "" {
		t.Fatalf("expected empty defaults, got channel=%q chatID=%q", m.LastChannel(), m.LastChatID())
	}

	if err := m.SetLastChannel("telegram"); err != nil {
		t.Fatalf("SetLastChannel: %v", err)
	}
	if err := m.SetLastChatID("chat-123"); err != nil {
		t.Fatalf("SetLastChatID: %v", err)
	}

	if m.LastChannel() != "telegram" {
		t.Fatalf("LastChannel() = %q, want telegram", m.LastChannel())
	}
	if m.LastChatID() != "chat-123" {
		t.Fatalf("LastChatID() = %q, want chat-123", m.LastChatID())
	}
}

func TestManagerPersistsAcrossRestart(t *testing.T) {
	workspace := t.TempDir()
	m := NewManager(workspace)
	if err := m.SetLastChannel("discord"); err != nil {
		t.Fatalf("SetLastChannel: %v", err)
	}
	if err := m.SetLastChatID("chat-999"); err != nil {
		t.Fatalf("SetLastChatID: %v", err)
	}

	reloaded := NewManager(workspace)
	if reloaded.LastChannel() != "discord" {
		t.Fatalf("expected persisted channel, got %q", reloaded.LastChannel())
	}
	if reloaded.LastChatID() != "chat-999" {
		t.Fatalf("expected persisted chat ID, got %q", reloaded.LastChatID())
	}
}
