package sandbox

import (
	"context"
	"testing"

	"github.com/vikingbot/vikingbot/pkg/config"
)

type mockBackend struct {
	sessionKey string
	workspace  string
	running    bool
}

func (m *mockBackend) Start(ctx context.Context) error {
	m.running = true
	return nil
}

func (m *mockBackend) Execute(ctx context.Context, command string, timeoutSeconds int) (string, error) {
	return "Mock: " + command, nil
}

func (m *mockBackend) Stop(ctx context.Context) error {
	m.running = false
	return nil
}

func (m *mockBackend) IsRunning() bool { return m.running }
func (m *mockBackend) Workspace() string { return m.workspace }

func mockFactory(cfg config.SandboxConfig, sessionKey, workspace string) Backend {
	return &mockBackend{sessionKey: sessionKey, workspace: workspace}
}

func newTestManager(t *testing.T, mode config.SandboxMode, enabled bool) *Manager {
	t.Helper()
	cfg := config.SandboxConfig{Enabled: enabled, Backend: "mock", Mode: mode}
	m, err := NewManager(cfg, t.TempDir(), t.TempDir(), mockFactory, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestGetSandboxDisabled(t *testing.T) {
	m := newTestManager(t, config.SandboxModePerSession, false)
	if _, err := m.GetSandbox(context.Background(), "test_session"); err != ErrSandboxDisabled {
		t.Fatalf("expected ErrSandboxDisabled, got %v", err)
	}
}

func TestGetSandboxPerSession(t *testing.T) {
	m := newTestManager(t, config.SandboxModePerSession, true)
	s1, err := m.GetSandbox(context.Background(), "session1")
	if err != nil {
		t.Fatalf("GetSandbox session1: %v", err)
	}
	s2, err := m.GetSandbox(context.Background(), "session2")
	if err != nil {
		t.Fatalf("GetSandbox session2: %v", err)
	}
	if s1 == s2 {
		t.Fatalf("expected distinct sandboxes per session")
	}
	if s1.(*mockBackend).sessionKey != "session1" || s2.(*mockBackend).sessionKey != "session2" {
		t.Fatalf("unexpected session keys")
	}
}

func TestGetSandboxShared(t *testing.T) {
	m := newTestManager(t, config.SandboxModeShared, true)
	s1, err := m.GetSandbox(context.Background(), "session1")
	if err != nil {
		t.Fatalf("GetSandbox session1: %v", err)
	}
	s2, err := m.GetSandbox(context.Background(), "session2")
	if err != nil {
		t.Fatalf("GetSandbox session2: %v", err)
	}
	if s1 != s2 {
		t.Fatalf("expected the same shared sandbox instance")
	}
	if s1.(*mockBackend).sessionKey != "shared" {
		t.Fatalf("expected shared session key, got %q", s1.(*mockBackend).sessionKey)
	}
}

func TestCleanupSession(t *testing.T) {
	m := newTestManager(t, config.SandboxModePerSession, true)
	s, err := m.GetSandbox(context.Background(), "test_session")
	if err != nil {
		t.Fatalf("GetSandbox: %v", err)
	}
	if !s.IsRunning() {
		t.Fatalf("expected sandbox running")
	}
	if err := m.CleanupSession(context.Background(), "test_session"); err != nil {
		t.Fatalf("CleanupSession: %v", err)
	}
	if s.IsRunning() {
		t.Fatalf("expected sandbox stopped")
	}
}

func TestCleanupAll(t *testing.T) {
	m := newTestManager(t, config.SandboxModePerSession, true)
	s1, _ := m.GetSandbox(context.Background(), "session1")
	s2, _ := m.GetSandbox(context.Background(), "session2")
	if !s1.IsRunning() || !s2.IsRunning() {
		t.Fatalf("expected both sandboxes running")
	}
	if err := m.CleanupAll(context.Background()); err != nil {
		t.Fatalf("CleanupAll: %v", err)
	}
	if s1.IsRunning() || s2.IsRunning() {
		t.Fatalf("expected both sandboxes stopped")
	}
}

func TestNewManagerUnsupportedBackend(t *testing.T) {
	cfg := config.SandboxConfig{Enabled: true, Backend: "unsupported", Mode: config.SandboxModePerSession}
	if _, err := NewManager(cfg, t.TempDir(), t.TempDir(), nil, nil); err == nil {
		t.Fatalf("expected error for nil factory")
	}
}
