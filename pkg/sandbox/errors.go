package sandbox

import "errors"

// Sentinel errors returned by SandboxManager and SandboxBackend
// implementations. Callers switch on these with errors.Is rather than
// string matching.
var (
	// ErrSandboxDisabled is returned by GetSandbox when the sandbox
	// config is disabled, or its mode is neither "per-session" nor
	// "shared".
	ErrSandboxDisabled = errors.New("sandbox: disabled")

	// ErrSandboxNotStarted is returned by Execute when called before
	// Start has completed successfully.
	ErrSandboxNotStarted = errors.New("sandbox: not started")

	// ErrUnsupportedBackend is returned when a configured backend name
	// has no registered implementation.
	ErrUnsupportedBackend = errors.New("sandbox: unsupported backend")

	// ErrResponseTimeout is returned when a backend's child process does
	// not answer a request within its timeout window.
	ErrResponseTimeout = errors.New("sandbox: timeout waiting for response")
)
