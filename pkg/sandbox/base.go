// Package sandbox manages isolated execution environments the agent loop
// can hand shell commands to instead of running them on the host. Backends
// are pluggable (see pkg/sandbox/backends); SandboxManager allocates one
// instance per session or a single shared instance, per configuration.
package sandbox

import "context"

// Backend is the contract every sandbox implementation satisfies: start a
// process or container, run commands in it, and tear it down. Execute calls
// are serialized per instance — backends are not required to support
// concurrent Execute calls, and SandboxManager never issues overlapping
// ones against the same instance.
type Backend interface {
	// Start brings the sandbox up: spawns its process, performs any
	// handshake, and leaves it ready for Execute.
	Start(ctx context.Context) error

	// Execute runs command inside the sandbox and returns combined
	// stdout/stderr output, truncated to a bounded length. timeoutSeconds
	// bounds how long the backend waits for the command to finish.
	Execute(ctx context.Context, command string, timeoutSeconds int) (string, error)

	// Stop tears the sandbox down. Stop on an already-stopped backend is
	// a no-op.
	Stop(ctx context.Context) error

	// IsRunning reports whether the backend's process is alive.
	IsRunning() bool

	// Workspace returns the host directory the sandbox's filesystem is
	// rooted at (or mounted from).
	Workspace() string
}
