package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, dir, name, frontmatter, body string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := "---\n" + frontmatter + "\n---\n" + body
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestListSkillsWorkspaceShadowsGlobalShadowsBuiltin(t *testing.T) {
	workspace := t.TempDir()
	global := t.TempDir()
	builtin := t.TempDir()

	writeSkill(t, filepath.Join(workspace, "skills"), "shared", `{"name": "shared", "description": "workspace version"}`, "workspace body")
	writeSkill(t, global, "shared", `{"name": "shared", "description": "global version"}`, "global body")
	writeSkill(t, builtin, "builtin-only", `{"name": "builtin-only", "description": "builtin thing"}`, "builtin body")

	sl := NewSkillsLoader(workspace, global, builtin)
	all := sl.ListSkills()

	if len(all) != 2 {
		t.Fatalf("expected 2 unique skills, got %d: %+v", len(all), all)
	}
	byName := map[string]Info{}
	for _, s := range all {
		byName[s.Name] = s
	}
	if byName["shared"].Description != "workspace version" {
		t.Fatalf("expected workspace skill to shadow global, got %q", byName["shared"].Description)
	}
	if byName["builtin-only"].Description != "builtin thing" {
		t.Fatalf("expected builtin-only skill discovered, got %+v", byName["builtin-only"])
	}
}

func TestGetAlwaysSkillsFiltersOnFrontmatterFlag(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, filepath.Join(workspace, "skills"), "always-on", `{"name": "always-on", "description": "d", "always": true}`, "content")
	writeSkill(t, filepath.Join(workspace, "skills"), "progressive", `{"name": "progressive", "description": "d"}`, "content")

	sl := NewSkillsLoader(workspace, "", "")
	got := sl.GetAlwaysSkills()
	if len(got) != 1 || got[0] != "always-on" {
		t.Fatalf("expected only always-on skill, got %v", got)
	}
}

func TestGetAlwaysSkillsParsesYAMLFrontmatter(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, filepath.Join(workspace, "skills"), "yaml-skill", "name: yaml-skill\ndescription: a yaml skill\nalways: true", "content")

	sl := NewSkillsLoader(workspace, "", "")
	got := sl.GetAlwaysSkills()
	if len(got) != 1 || got[0] != "yaml-skill" {
		t.Fatalf("expected yaml-skill marked always via YAML frontmatter, got %v", got)
	}
}

func TestLoadSkillsForContextStripsFrontmatterAndConcatenates(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, filepath.Join(workspace, "skills"), "one", `{"name": "one", "description": "d"}`, "# One\n\nbody one")
	writeSkill(t, filepath.Join(workspace, "skills"), "two", `{"name": "two", "description": "d"}`, "# Two\n\nbody two")

	sl := NewSkillsLoader(workspace, "", "")
	got := sl.LoadSkillsForContext([]string{"one", "two"})

	if !strings.Contains(got, "body one") || !strings.Contains(got, "body two") {
		t.Fatalf("expected both skill bodies present, got %q", got)
	}
	if strings.Contains(got, "---") {
		t.Fatalf("expected frontmatter stripped, got %q", got)
	}
}

func TestLoadSkillsForContextSkipsUnknownNames(t *testing.T) {
	workspace := t.TempDir()
	sl := NewSkillsLoader(workspace, "", "")
	got := sl.LoadSkillsForContext([]string{"does-not-exist"})
	if got != "" {
		t.Fatalf("expected empty string for unknown skill, got %q", got)
	}
}

func TestBuildSkillsSummaryListsNameAndDescription(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, filepath.Join(workspace, "skills"), "greeter", `{"name": "greeter", "description": "says hello"}`, "body")

	sl := NewSkillsLoader(workspace, "", "")
	summary := sl.BuildSkillsSummary()
	if !strings.Contains(summary, "greeter") || !strings.Contains(summary, "says hello") {
		t.Fatalf("expected summary to mention name and description, got %q", summary)
	}
}

func TestBuildSkillsSummaryEmptyWhenNoSkills(t *testing.T) {
	sl := NewSkillsLoader(t.TempDir(), "", "")
	if got := sl.BuildSkillsSummary(); got != "" {
		t.Fatalf("expected empty summary with no skills, got %q", got)
	}
}
