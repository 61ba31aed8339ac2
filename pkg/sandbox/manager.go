package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/logger"
	"github.com/vikingbot/vikingbot/pkg/workspace"
)

// BackendFactory constructs a Backend for one session's sandbox; satisfied
// by backends.Factory without sandbox importing the backends package
// (backends imports sandbox, not the reverse).
type BackendFactory func(cfg config.SandboxConfig, sessionKey, workspace string) Backend

// Manager allocates and tears down sandbox instances per the configured
// mode: one instance per session, one instance shared across every
// session, or none at all.
//
// It takes two workspace paths rather than one: sandboxParent is the host
// directory each session's (or the shared) sandbox workspace is created
// under, while sourceWorkspace is the already-materialized workspace
// bootstrap files are copied FROM. They differ because a sandbox's
// workspace is freshly created per session key under sandboxParent, while
// the source workspace (where AGENTS.md, skills/, etc. live) is shared
// and fixed.
type Manager struct {
	config          config.SandboxConfig
	sandboxParent   string
	sourceWorkspace string
	backendFactory  BackendFactory
	materializer    *workspace.Materializer

	mu       sync.Mutex
	perKeyMu map[string]*sync.Mutex

	sandboxes      map[string]Backend
	sharedSandbox  Backend
	sharedOnce     sync.Once
	sharedErr      error
}

// NewManager builds a Manager bound to a registered backend factory. It
// returns ErrUnsupportedBackend immediately if cfg.Backend has no factory.
func NewManager(cfg config.SandboxConfig, sandboxParent, sourceWorkspace string, factory BackendFactory, materializer *workspace.Materializer) (*Manager, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
	return &Manager{
		config:          cfg,
		sandboxParent:   sandboxParent,
		sourceWorkspace: sourceWorkspace,
		backendFactory:  factory,
		materializer:    materializer,
		perKeyMu:        make(map[string]*sync.Mutex),
		sandboxes:       make(map[string]Backend),
	}, nil
}

// GetSandbox returns the sandbox instance for sessionKey, per the
// configured mode, creating it on first use. Returns ErrSandboxDisabled if
// sandboxing is off or the mode is neither "per-session" nor "shared".
func (m *Manager) GetSandbox(ctx context.Context, sessionKey string) (Backend, error) {
	if !m.config.Enabled {
		return nil, ErrSandboxDisabled
	}

	switch m.config.Mode {
	case config.SandboxModePerSession:
		return m.getOrCreateSessionSandbox(ctx, sessionKey)
	case config.SandboxModeShared:
		return m.getOrCreateSharedSandbox(ctx)
	default:
		return nil, ErrSandboxDisabled
	}
}

func (m *Manager) lockForKey(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.perKeyMu[key]
	if !ok {
		l = &sync.Mutex{}
		m.perKeyMu[key] = l
	}
	return l
}

func (m *Manager) getOrCreateSessionSandbox(ctx context.Context, sessionKey string) (Backend, error) {
	// Serialize creation per key so two concurrent first-uses of the same
	// session don't race to spawn two backends.
	keyLock := m.lockForKey(sessionKey)
	keyLock.Lock()
	defer keyLock.Unlock()

	m.mu.Lock()
	existing, ok := m.sandboxes[sessionKey]
	m.mu.Unlock()
	if ok {
		return existing, nil
	}

	instance, err := m.createSandbox(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sandboxes[sessionKey] = instance
	m.mu.Unlock()
	return instance, nil
}

func (m *Manager) getOrCreateSharedSandbox(ctx context.Context) (Backend, error) {
	m.sharedOnce.Do(func() {
		m.sharedSandbox, m.sharedErr = m.createSandbox(ctx, "shared")
	})
	return m.sharedSandbox, m.sharedErr
}

func (m *Manager) createSandbox(ctx context.Context, sessionKey string) (Backend, error) {
	ws := filepath.Join(m.sandboxParent, sanitize(sessionKey))
	instance := m.backendFactory(m.config, sessionKey, ws)

	if err := instance.Start(ctx); err != nil {
		logger.ErrorCF("sandbox.manager", "failed to start sandbox", map[string]interface{}{
			"session_key": sessionKey, "error": err.Error(),
		})
	}

	if m.materializer != nil {
		if err := m.materializer.Materialize(m.sourceWorkspace, ws); err != nil {
			logger.WarnCF("sandbox.manager", "failed to copy bootstrap files", map[string]interface{}{
				"session_key": sessionKey, "error": err.Error(),
			})
		}
	}

	return instance, nil
}

func sanitize(sessionKey string) string {
	out := make([]byte, len(sessionKey))
	for i := 0; i < len(sessionKey); i++ {
		if sessionKey[i] == ':' {
			out[i] = '_'
		} else {
			out[i] = sessionKey[i]
		}
	}
	return string(out)
}

// CleanupSession stops and discards the sandbox for sessionKey, if any.
func (m *Manager) CleanupSession(ctx context.Context, sessionKey string) error {
	m.mu.Lock()
	instance, ok := m.sandboxes[sessionKey]
	if ok {
		delete(m.sandboxes, sessionKey)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return instance.Stop(ctx)
}

// CleanupAll stops every session sandbox and the shared sandbox, if any.
func (m *Manager) CleanupAll(ctx context.Context) error {
	m.mu.Lock()
	instances := make([]Backend, 0, len(m.sandboxes))
	for _, instance := range m.sandboxes {
		instances = append(instances, instance)
	}
	m.sandboxes = make(map[string]Backend)
	shared := m.sharedSandbox
	m.sharedSandbox = nil
	m.mu.Unlock()

	var firstErr error
	for _, instance := range instances {
		if err := instance.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if shared != nil {
		if err := shared.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
