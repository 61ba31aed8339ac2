package backends

import (
	"context"
	"testing"

	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/sandbox"
)

type stubBackend struct{}

func (stubBackend) Start(ctx context.Context) error { return nil }
func (stubBackend) Execute(ctx context.Context, command string, timeoutSeconds int) (string, error) {
	return "Mock: " + command, nil
}
func (stubBackend) Stop(ctx context.Context) error { return nil }
func (stubBackend) IsRunning() bool                { return false }
func (stubBackend) Workspace() string              { return "/tmp/mock" }

func TestGetBackendSrtRegisteredByInit(t *testing.T) {
	f, ok := Get("srt")
	if !ok || f == nil {
		t.Fatalf("expected srt backend registered by init()")
	}
}

func TestGetBackendNonexistent(t *testing.T) {
	if _, ok := Get("nonexistent"); ok {
		t.Fatalf("expected ok=false for unregistered backend")
	}
}

func TestListBackendsIncludesSrt(t *testing.T) {
	names := List()
	found := false
	for _, n := range names {
		if n == "srt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected srt in %v", names)
	}
}

func TestRegisterAndGetBackend(t *testing.T) {
	Register("test-mock", func(cfg config.SandboxConfig, sessionKey, workspace string) sandbox.Backend {
		return stubBackend{}
	})
	f, ok := Get("test-mock")
	if !ok {
		t.Fatalf("expected test-mock registered")
	}
	b := f(config.SandboxConfig{}, "k", "/tmp")
	if _, ok := b.(stubBackend); !ok {
		t.Fatalf("expected stubBackend instance")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("dup-mock", func(cfg config.SandboxConfig, sessionKey, workspace string) sandbox.Backend {
		return stubBackend{}
	})
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("dup-mock", func(cfg config.SandboxConfig, sessionKey, workspace string) sandbox.Backend {
		return stubBackend{}
	})
}
