package contracts

import (
	"context"

	"github.com/mark3labs/mcp-go/client"

	"github.com/steward-ai/stewardd/internal/domain"
)

// SandboxRuntime starts and stops the isolated runtime hosting a local server.
// Remote servers never touch the sandbox runtime.
type SandboxRuntime interface {
	// StartServer provisions and starts a sandbox for the record's server.
	StartServer(ctx context.Context, rec domain.ServerRecord) error

	// RemoveServer tears down the server's sandbox. Removing a sandbox that is
	// not running is a no-op, not an error.
	RemoveServer(ctx context.Context, id string) error
}

// SandboxMonitor exposes point-in-time sandbox status snapshots.
type SandboxMonitor interface {
	// Status returns the snapshot for a single server, with a boolean
	// indicating whether the server is tracked.
	Status(id string) (domain.SandboxStatus, bool)

	// Summary returns a snapshot of all tracked sandboxes.
	Summary() []domain.SandboxStatus
}

// MCPClientAccessor provides access to the live MCP client for a running server.
type MCPClientAccessor interface {
	// Add registers a client by server ID.
	Add(id string, c *client.Client)

	// Client returns the client for the given server ID.
	// It returns a boolean to indicate whether the client was found.
	Client(id string) (*client.Client, bool)

	// List returns all server IDs with live clients.
	List() []string

	// Remove deletes the client by server ID.
	Remove(id string)
}

// ToolDiscoverer lists the tools exposed by a server.
type ToolDiscoverer interface {
	// Discover returns tool record seeds for the server, with classification
	// fields left nil.
	Discover(ctx context.Context, rec domain.ServerRecord) ([]domain.ToolRecord, error)
}

// CatalogSyncer mirrors the aggregated tool catalog to an externally-connected
// client. Orchestrator operations re-synchronize all registered syncers after
// install and uninstall.
type CatalogSyncer interface {
	// SyncCatalog pushes the current tool catalog. Failures are logged by the
	// caller and never abort a lifecycle operation.
	SyncCatalog(ctx context.Context) error
}
