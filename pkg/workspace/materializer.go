// Package workspace materializes the bootstrap files every session
// workspace (and, via SandboxManager, every sandbox workspace) is seeded
// with: the agent's persona/memory/skill files and a skills/ directory
// merged from builtin, global, and source-workspace locations.
package workspace

import (
	"io"
	"os"
	"path/filepath"

	"github.com/vikingbot/vikingbot/pkg/logger"
)

// InitDir is the directory name a workspace may carry to fully override
// the default bootstrap file set: when present, its contents are copied
// wholesale instead of the individual BootstrapFiles.
const InitDir = "init"

// BootstrapFiles lists the default per-workspace files materialized when no
// init/ directory is present.
var BootstrapFiles = []string{
	"AGENTS.md",
	"SOUL.md",
	"USER.md",
	"TOOLS.md",
	"IDENTITY.md",
}

// MemoryFiles lists the files materialized under workspace/memory/.
var MemoryFiles = []string{"MEMORY.md", "HISTORY.md"}

// Materializer copies bootstrap and skill files into a target workspace,
// lazily and idempotently: it never overwrites a file already present.
type Materializer struct {
	builtinSkillsDir string
	globalSkillsDir  string
}

// NewMaterializer builds a Materializer. builtinSkillsDir ships with the
// binary; globalSkillsDir is the operator's shared skill directory
// (typically ~/.vikingbot/skills).
func NewMaterializer(builtinSkillsDir, globalSkillsDir string) *Materializer {
	return &Materializer{builtinSkillsDir: builtinSkillsDir, globalSkillsDir: globalSkillsDir}
}

// Materialize seeds target from source: if source has an init/ directory,
// its contents are copied wholesale; otherwise the individual
// BootstrapFiles are copied where present. Either way, memory files and a
// layered skills/ directory (source skills override global skills override
// builtin skills) are then ensured.
func (m *Materializer) Materialize(source, target string) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}

	initDir := filepath.Join(source, InitDir)
	if info, err := os.Stat(initDir); err == nil && info.IsDir() {
		if err := copyTreeMerge(initDir, target); err != nil {
			return err
		}
	} else {
		for _, name := range BootstrapFiles {
			src := filepath.Join(source, name)
			if _, err := os.Stat(src); err != nil {
				continue
			}
			if err := copyFileIfAbsent(src, filepath.Join(target, name)); err != nil {
				return err
			}
		}
	}

	if err := m.materializeMemory(target); err != nil {
		return err
	}

	return m.materializeSkills(source, target)
}

func (m *Materializer) materializeMemory(target string) error {
	memDir := filepath.Join(target, "memory")
	if err := os.MkdirAll(memDir, 0o755); err != nil {
		return err
	}
	for _, name := range MemoryFiles {
		path := filepath.Join(memDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// materializeSkills layers three skill directories into target/skills,
// highest priority first so copyTreeMerge's first-writer-wins semantics
// give each layer the precedence it's supposed to have: the source
// workspace's own skills first (highest priority), then the operator's
// global skills, then builtin last as the fallback.
func (m *Materializer) materializeSkills(source, target string) error {
	dstSkills := filepath.Join(target, "skills")
	if err := os.MkdirAll(dstSkills, 0o755); err != nil {
		return err
	}

	layers := []string{filepath.Join(source, "skills"), m.globalSkillsDir, m.builtinSkillsDir}
	for _, layer := range layers {
		if layer == "" {
			continue
		}
		info, err := os.Stat(layer)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := copyTreeMerge(layer, dstSkills); err != nil {
			logger.WarnCF("workspace", "failed to merge skill layer", map[string]interface{}{
				"layer": layer, "error": err.Error(),
			})
		}
	}
	return nil
}

func copyFileIfAbsent(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// copyTreeMerge copies src's tree into dst, never overwriting files that
// already exist at the destination (dirs_exist_ok semantics, "first writer
// wins").
func copyTreeMerge(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFileIfAbsent(path, target)
	})
}
