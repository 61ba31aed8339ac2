package agent

import (
	"os"
	"path/filepath"
	"strings"
)

// MemoryStore reads a workspace's durable memory file for inclusion in the
// system prompt. Writing to it happens through the filesystem tools (the
// agent appends facts to memory/MEMORY.md itself) and through
// pkg/memory's KnowledgeExtractor for semantic-search-backed facts; this
// type only surfaces the flat file's current contents.
type MemoryStore struct {
	path string
}

// NewMemoryStore builds a store reading workspace/memory/MEMORY.md.
func NewMemoryStore(workspace string) *MemoryStore {
	return &MemoryStore{path: filepath.Join(workspace, "memory", "MEMORY.md")}
}

// GetMemoryContext returns MEMORY.md's contents, or "" if it doesn't exist
// or is empty.
func (ms *MemoryStore) GetMemoryContext() string {
	data, err := os.ReadFile(ms.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
