package specialists

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestListSpecialistsDiscoversFrontmatterMetadata(t *testing.T) {
	workspace := t.TempDir()
	writeSpecialist(t, workspace, "cook", `{"name": "cook", "description": "knows recipes"}`, "persona body")

	sl := NewSpecialistLoader(workspace)
	all := sl.ListSpecialists()
	if len(all) != 1 || all[0].Name != "cook" || all[0].Description != "knows recipes" {
		t.Fatalf("unexpected specialists list: %+v", all)
	}
}

func TestListSpecialistsParsesYAMLFrontmatter(t *testing.T) {
	workspace := t.TempDir()
	writeSpecialist(t, workspace, "baker", "name: baker\ndescription: bakes bread", "persona body")

	sl := NewSpecialistLoader(workspace)
	all := sl.ListSpecialists()
	if len(all) != 1 || all[0].Description != "bakes bread" {
		t.Fatalf("expected YAML frontmatter parsed, got %+v", all)
	}
}

func TestListSpecialistsEmptyWhenDirMissing(t *testing.T) {
	sl := NewSpecialistLoader(t.TempDir())
	if got := sl.ListSpecialists(); len(got) != 0 {
		t.Fatalf("expected no specialists, got %+v", got)
	}
}

func TestLoadSpecialistStripsFrontmatter(t *testing.T) {
	workspace := t.TempDir()
	writeSpecialist(t, workspace, "cook", `{"name": "cook", "description": "d"}`, "You are a cook persona.")

	sl := NewSpecialistLoader(workspace)
	persona, ok := sl.LoadSpecialist("cook")
	if !ok {
		t.Fatal("expected specialist found")
	}
	if persona != "You are a cook persona." {
		t.Fatalf("expected frontmatter stripped, got %q", persona)
	}
}

func TestLoadSpecialistMissingReturnsFalse(t *testing.T) {
	sl := NewSpecialistLoader(t.TempDir())
	if _, ok := sl.LoadSpecialist("ghost"); ok {
		t.Fatal("expected false for a specialist that doesn't exist")
	}
}

func TestExistsReflectsFilePresence(t *testing.T) {
	workspace := t.TempDir()
	writeSpecialist(t, workspace, "cook", `{"name": "cook"}`, "body")
	sl := NewSpecialistLoader(workspace)

	if !sl.Exists("cook") {
		t.Fatal("expected cook to exist")
	}
	if sl.Exists("ghost") {
		t.Fatal("expected ghost to not exist")
	}
}

func TestGetMetadataReturnsPathAndDescription(t *testing.T) {
	workspace := t.TempDir()
	writeSpecialist(t, workspace, "cook", `{"name": "cook", "description": "knows recipes"}`, "body")
	sl := NewSpecialistLoader(workspace)

	meta := sl.GetMetadata("cook")
	if meta == nil {
		t.Fatal("expected metadata, got nil")
	}
	if meta.Description != "knows recipes" {
		t.Fatalf("expected description populated, got %q", meta.Description)
	}
	if meta.Path != filepath.Join(workspace, "specialists", "cook", "SPECIALIST.md") {
		t.Fatalf("expected path populated, got %q", meta.Path)
	}
}

func TestGetMetadataMissingReturnsNil(t *testing.T) {
	sl := NewSpecialistLoader(t.TempDir())
	if meta := sl.GetMetadata("ghost"); meta != nil {
		t.Fatalf("expected nil metadata for missing specialist, got %+v", meta)
	}
}

func TestDirReturnsSpecialistsSubdirectory(t *testing.T) {
	workspace := t.TempDir()
	sl := NewSpecialistLoader(workspace)
	if sl.Dir() != filepath.Join(workspace, "specialists") {
		t.Fatalf("unexpected Dir(): %q", sl.Dir())
	}
}

func TestBuildSpecialistsSummaryEscapesXML(t *testing.T) {
	workspace := t.TempDir()
	writeSpecialist(t, workspace, "cook", `{"name": "cook", "description": "a <b> & c"}`, "body")
	sl := NewSpecialistLoader(workspace)

	summary := sl.BuildSpecialistsSummary()
	if !strings.Contains(summary, "a &lt;b&gt; &amp; c") {
		t.Fatalf("expected XML-escaped description, got %q", summary)
	}
}

func TestBuildSpecialistsSummaryEmptyWhenNone(t *testing.T) {
	sl := NewSpecialistLoader(t.TempDir())
	if got := sl.BuildSpecialistsSummary(); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}
