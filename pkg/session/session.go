// Package session maintains per-(channel, chat) conversation state:
// ordered history, running summary, and disk persistence under
// ~/.vikingbot/sessions/.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vikingbot/vikingbot/pkg/logger"
	"github.com/vikingbot/vikingbot/pkg/providers"
)

// Session is a logical conversation identified by a session key such as
// "telegram:123456". Field names and JSON tags are load-bearing: other
// packages (pkg/memory's backfill) read session files directly off disk.
type Session struct {
	Key      string              `json:"key"`
	Messages []providers.Message `json:"messages"`
	Summary  string              `json:"summary,omitempty"`
	Created  time.Time           `json:"created"`
	Updated  time.Time           `json:"updated"`

	// Metadata carries session-scoped routing hints, notably "channel": the
	// real channel adapter this session replies through. Synthetic inbound
	// sources (cron-fired messages use "cron:{job_id}" as their Channel for
	// provenance) have no adapter of their own, so anything that needs to
	// reply into this session looks here rather than at the inbound
	// message's Channel field.
	Metadata map[string]string `json:"metadata,omitempty"`

	cancel context.CancelFunc
}

// Cancel requests cancellation of whatever agent loop invocation currently
// owns this session, if one is running. Safe to call with no loop active.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

func sanitizeKey(key string) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(key)
}

// channelFromKey extracts the channel half of a "{channel}:{chat_id}"
// session key.
func channelFromKey(key string) string {
	if idx := strings.IndexByte(key, ':'); idx > 0 {
		return key[:idx]
	}
	return key
}

// SessionManager owns every live Session, persisting each to its own JSON
// file on demand.
type SessionManager struct {
	dir      string
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager builds a session manager persisting under dir. The
// directory is created lazily on first Save rather than here, so a
// read-only workspace can still construct a manager for in-memory use.
func NewSessionManager(dir string) *SessionManager {
	return &SessionManager{dir: dir, sessions: make(map[string]*Session)}
}

func (m *SessionManager) path(key string) string {
	return filepath.Join(m.dir, sanitizeKey(key)+".json")
}

// get returns key's in-memory session, loading it from disk or creating a
// fresh one on first reference. Caller must hold m.mu.
func (m *SessionManager) get(key string) *Session {
	sess, ok := m.sessions[key]
	if ok {
		return sess
	}
	sess = m.loadFromDisk(key)
	if sess.Metadata == nil {
		sess.Metadata = map[string]string{}
	}
	if sess.Metadata["channel"] == "" {
		sess.Metadata["channel"] = channelFromKey(key)
	}
	m.sessions[key] = sess
	return sess
}

func (m *SessionManager) loadFromDisk(key string) *Session {
	data, err := os.ReadFile(m.path(key))
	if err != nil {
		now := time.Now()
		return &Session{Key: key, Created: now, Updated: now}
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		logger.WarnCF("session", "discarding corrupt session file", map[string]interface{}{"key": key, "error": err.Error()})
		now := time.Now()
		return &Session{Key: key, Created: now, Updated: now}
	}
	sess.Key = key
	return &sess
}

// GetOrCreate returns key's session (loading or creating it as needed) and
// a context derived from ctx that the caller should run its agent loop
// iteration under; Delete cancels it.
func (m *SessionManager) GetOrCreate(ctx context.Context, key string) (*Session, context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.get(key)
	loopCtx, cancel := context.WithCancel(ctx)
	sess.cancel = cancel
	return sess, loopCtx
}

// GetHistory returns a copy of key's current message history.
func (m *SessionManager) GetHistory(key string) []providers.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.get(key)
	out := make([]providers.Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out
}

// GetSummary returns key's current running summary, or "" if none.
func (m *SessionManager) GetSummary(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(key).Summary
}

// GetMetadata returns key's session metadata (notably "channel", the real
// channel this session replies through), creating the session if needed.
func (m *SessionManager) GetMetadata(key string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(key).Metadata
}

// SetSummary replaces key's running summary without touching its history.
func (m *SessionManager) SetSummary(key, summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.get(key)
	sess.Summary = summary
	sess.Updated = time.Now()
}

// AddMessage appends a plain text message to key's history.
func (m *SessionManager) AddMessage(key, role, content string) {
	m.AddFullMessage(key, providers.Message{Role: role, Content: content})
}

// AddFullMessage appends a message (possibly carrying tool calls, a
// tool_call_id, or multimodal content parts) to key's history.
func (m *SessionManager) AddFullMessage(key string, msg providers.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.get(key)
	sess.Messages = append(sess.Messages, msg)
	sess.Updated = time.Now()
}

// TruncateHistory keeps only the last keepLast messages in key's history.
// Used after summarization replaces the dropped messages with a summary.
func (m *SessionManager) TruncateHistory(key string, keepLast int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.get(key)
	if len(sess.Messages) > keepLast {
		sess.Messages = append([]providers.Message{}, sess.Messages[len(sess.Messages)-keepLast:]...)
	}
	sess.Updated = time.Now()
}

// Save persists key's current in-memory state to disk.
func (m *SessionManager) Save(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.get(key)
	return m.persist(sess)
}

func (m *SessionManager) persist(sess *Session) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("session: creating sessions dir: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshaling %s: %w", sess.Key, err)
	}
	if err := os.WriteFile(m.path(sess.Key), data, 0o644); err != nil {
		return fmt.Errorf("session: writing %s: %w", sess.Key, err)
	}
	return nil
}

// List returns every session key currently held in memory. It does not
// scan the sessions directory for keys never touched this run.
func (m *SessionManager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	return keys
}

// Delete cancels any in-flight loop for key, drops it from memory, and
// removes its persisted file.
func (m *SessionManager) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[key]; ok {
		sess.Cancel()
		delete(m.sessions, key)
	}
	if err := os.Remove(m.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: removing %s: %w", key, err)
	}
	return nil
}

// Compress is the single-call form of the summarize-then-truncate sequence
// the agent loop runs inline (see AgentLoop.summarizeSession): it replaces
// everything except the last keepTail messages with summary and persists
// the result. Exposed directly for CLI/administrative use.
func (m *SessionManager) Compress(key, summary string, keepTail int) error {
	m.SetSummary(key, summary)
	m.TruncateHistory(key, keepTail)
	return m.Save(key)
}

// Extract walks key's full history, pairing each user message with the
// assistant reply that follows it, handing both to extractFn so the
// caller (pkg/memory's KnowledgeExtractor) can derive durable facts into
// memory/MEMORY.md. It does not mutate the session.
func (m *SessionManager) Extract(ctx context.Context, key string, extractFn func(ctx context.Context, userMsg, assistantMsg string)) {
	history := m.GetHistory(key)
	for i := 0; i < len(history)-1; i++ {
		if history[i].Role != "user" || history[i+1].Role != "assistant" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return
		}
		extractFn(ctx, history[i].Content, history[i+1].Content)
	}
}
