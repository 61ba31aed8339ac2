// Package skills discovers skill directories (each holding a SKILL.md) and
// renders them for inclusion in the system prompt. Skills are merged onto
// disk by pkg/workspace at materialization time (source workspace skills
// override global skills override builtin skills); SkillsLoader only reads
// the result, plus the unmerged global/builtin layers so a skill summary
// can be produced before a sandbox workspace exists.
package skills

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Info holds metadata about a skill, parsed from SKILL.md frontmatter.
type Info struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
	// Always marks a skill whose full SKILL.md content is injected into
	// every system prompt rather than left for progressive loading.
	Always bool `json:"always"`
}

// SkillsLoader discovers SKILL.md files across a workspace's own skills/
// directory plus the operator-global and builtin skill directories.
type SkillsLoader struct {
	workspaceSkillsDir string
	globalSkillsDir    string
	builtinSkillsDir   string
}

// NewSkillsLoader builds a loader scanning workspace/skills, globalDir, and
// builtinDir, in that priority order (workspace wins on name collision).
func NewSkillsLoader(workspace, globalDir, builtinDir string) *SkillsLoader {
	return &SkillsLoader{
		workspaceSkillsDir: filepath.Join(workspace, "skills"),
		globalSkillsDir:    globalDir,
		builtinSkillsDir:   builtinDir,
	}
}

// ListSkills scans all three layers for directories containing SKILL.md,
// returning one entry per unique skill name (workspace shadows global
// shadows builtin).
func (sl *SkillsLoader) ListSkills() []Info {
	seen := make(map[string]bool)
	var out []Info

	for _, dir := range []string{sl.workspaceSkillsDir, sl.globalSkillsDir, sl.builtinSkillsDir} {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || seen[entry.Name()] {
				continue
			}
			skillFile := filepath.Join(dir, entry.Name(), "SKILL.md")
			if _, err := os.Stat(skillFile); err != nil {
				continue
			}
			info := Info{Name: entry.Name(), Path: skillFile}
			if meta := readMetadata(skillFile); meta != nil {
				info.Description = meta.Description
				info.Always = meta.Always
			}
			out = append(out, info)
			seen[entry.Name()] = true
		}
	}

	return out
}

// LoadSkillsForContext reads and concatenates the SKILL.md content (minus
// frontmatter) of the named skills, in the order given.
func (sl *SkillsLoader) LoadSkillsForContext(names []string) string {
	var sb strings.Builder
	for _, name := range names {
		path := sl.resolve(name)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		sb.WriteString("## " + name + "\n\n")
		sb.WriteString(stripFrontmatter(string(data)))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

// BuildSkillsSummary renders every discovered skill as a bullet listing its
// name and description, for the system prompt's Skills section.
func (sl *SkillsLoader) BuildSkillsSummary() string {
	all := sl.ListSkills()
	if len(all) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, s := range all {
		sb.WriteString("- **" + s.Name + "**")
		if s.Description != "" {
			sb.WriteString(": " + s.Description)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// GetAlwaysSkills returns the names of skills whose frontmatter sets
// always: true, in discovery order.
func (sl *SkillsLoader) GetAlwaysSkills() []string {
	var names []string
	for _, s := range sl.ListSkills() {
		if s.Always {
			names = append(names, s.Name)
		}
	}
	return names
}

func (sl *SkillsLoader) resolve(name string) string {
	for _, dir := range []string{sl.workspaceSkillsDir, sl.globalSkillsDir, sl.builtinSkillsDir} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name, "SKILL.md")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var frontmatterRe = regexp.MustCompile(`(?s)^---\n(.*)\n---`)
var frontmatterStripRe = regexp.MustCompile(`(?s)^---\n.*?\n---\n`)

func readMetadata(path string) *Info {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	match := frontmatterRe.FindStringSubmatch(string(content))
	if len(match) < 2 {
		return &Info{Name: filepath.Base(filepath.Dir(path))}
	}

	var jsonMeta struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Always      bool   `json:"always"`
	}
	if err := json.Unmarshal([]byte(match[1]), &jsonMeta); err == nil && jsonMeta.Description != "" {
		return &Info{Name: jsonMeta.Name, Description: jsonMeta.Description, Always: jsonMeta.Always}
	}

	yamlMeta := parseSimpleYAML(match[1])
	return &Info{
		Name:        yamlMeta["name"],
		Description: yamlMeta["description"],
		Always:      yamlMeta["always"] == "true",
	}
}

func parseSimpleYAML(content string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), "\"'")
			result[key] = value
		}
	}
	return result
}

func stripFrontmatter(content string) string {
	return frontmatterStripRe.ReplaceAllString(content, "")
}
