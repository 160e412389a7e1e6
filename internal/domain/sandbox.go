package domain

const (
	// SandboxStateInitializing means the sandbox is starting up.
	SandboxStateInitializing SandboxState = "initializing"

	// SandboxStateRunning means the sandboxed server is up and serving.
	SandboxStateRunning SandboxState = "running"

	// SandboxStateError means the sandbox failed to start or crashed.
	SandboxStateError SandboxState = "error"
)

// SandboxState represents the runtime state of one server's sandbox.
type SandboxState string

// SandboxStatus is a point-in-time snapshot of a single sandbox.
// Status reads always come from snapshots, never live handles, so they race
// safely against concurrent start/stop calls.
type SandboxStatus struct {
	ServerID          string       `json:"serverId"`
	State             SandboxState `json:"state"`
	StartupPercentage int          `json:"startupPercentage"`
	Message           string       `json:"message,omitempty"`
	Error             string       `json:"error,omitempty"`
}
