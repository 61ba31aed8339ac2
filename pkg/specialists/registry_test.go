package specialists

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRegistryHasBuiltins(t *testing.T) {
	r := NewRegistry()
	if !r.Has("explore") || !r.Has("librarian") {
		t.Fatalf("expected explore and librarian registered by default, got %v", r.List())
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	err := r.Register("explore", NewExploreAgent)
	if err == nil {
		t.Fatal("expected an error registering an already-taken name")
	}
}

func TestRegisterThenGetAppliesModelOverride(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("custom", func(model string) AgentConfig {
		return AgentConfig{Description: "custom specialist", Model: model}
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cfg, err := r.Get("custom", "gpt-5")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Model != "gpt-5" {
		t.Fatalf("expected model override applied, got %q", cfg.Model)
	}
}

func TestGetUnknownSpecialistErrors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("does-not-exist", ""); err == nil {
		t.Fatal("expected an error for an unregistered specialist")
	}
}

func TestListIsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zzz", func(model string) AgentConfig { return AgentConfig{} })
	r.Register("aaa", func(model string) AgentConfig { return AgentConfig{} })

	names := r.List()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("expected sorted names, got %v", names)
		}
	}
}

func TestSummaryRendersXMLForEachSpecialist(t *testing.T) {
	r := NewRegistry()
	summary := r.Summary()
	if !strings.Contains(summary, "<specialists>") || !strings.Contains(summary, "<name>explore</name>") {
		t.Fatalf("expected XML summary containing explore, got %q", summary)
	}
}

func writeSpecialist(t *testing.T, workspace, name, frontmatter, body string) {
	t.Helper()
	dir := filepath.Join(workspace, "specialists", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := "---\n" + frontmatter + "\n---\n" + body
	if err := os.WriteFile(filepath.Join(dir, "SPECIALIST.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestRegisterWorkspaceSpecialistsAddsDiscoveredPersonas(t *testing.T) {
	workspace := t.TempDir()
	writeSpecialist(t, workspace, "historian", `{"name": "historian", "description": "knows the past"}`, "You are a historian.")

	loader := NewSpecialistLoader(workspace)
	r := NewRegistry()
	r.RegisterWorkspaceSpecialists(loader)

	if !r.Has("historian") {
		t.Fatalf("expected historian registered, got %v", r.List())
	}
	cfg, err := r.Get("historian", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Mode != ModeSubagent {
		t.Fatalf("expected subagent mode, got %q", cfg.Mode)
	}
	if cfg.Prompt != "You are a historian." {
		t.Fatalf("expected persona loaded as prompt, got %q", cfg.Prompt)
	}
	if cfg.Description != "knows the past" {
		t.Fatalf("expected description from frontmatter, got %q", cfg.Description)
	}
	for _, want := range []string{"write", "edit", "message", "spawn"} {
		found := false
		for _, d := range cfg.DisabledTools {
			if d == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %q disabled for workspace specialists, got %v", want, cfg.DisabledTools)
		}
	}
}

func TestRegisterWorkspaceSpecialistsSkipsNameCollisionWithBuiltin(t *testing.T) {
	workspace := t.TempDir()
	writeSpecialist(t, workspace, "explore", `{"name": "explore", "description": "shadow"}`, "shadow persona")

	loader := NewSpecialistLoader(workspace)
	r := NewRegistry()
	r.RegisterWorkspaceSpecialists(loader)

	cfg, err := r.Get("explore", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Prompt == "shadow persona" {
		t.Fatal("expected built-in explore specialist to win over the workspace shadow")
	}
}
