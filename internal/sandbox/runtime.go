// Package sandbox runs local MCP servers as isolated child processes and
// tracks their runtime status. Each server gets its own process and stdio
// transport; remote servers never pass through this package.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/errors"
)

// DefaultInitializeTimeout bounds the MCP initialize handshake with a freshly
// spawned server process.
const DefaultInitializeTimeout = 30 * time.Second

// ProcessRuntime starts and stops sandboxed server processes.
// NewProcessRuntime should be used to create instances of ProcessRuntime.
type ProcessRuntime struct {
	logger            hclog.Logger
	clients           *ClientManager
	tracker           *StatusTracker
	initializeTimeout time.Duration
	clientName        string
	clientVersion     string
}

// NewProcessRuntime creates a runtime that registers started clients with the
// given manager and reports progress through the given tracker.
func NewProcessRuntime(logger hclog.Logger, clients *ClientManager, tracker *StatusTracker) *ProcessRuntime {
	return &ProcessRuntime{
		logger:            logger.Named("sandbox"),
		clients:           clients,
		tracker:           tracker,
		initializeTimeout: DefaultInitializeTimeout,
		clientName:        "stewardd",
		clientVersion:     "0.1.0",
	}
}

// StartServer spawns the server's process and completes the MCP initialize
// handshake. Progress is reflected in the status tracker as it happens; on any
// failure the tracker is left in the error state and the returned error wraps
// ErrSandboxStartFailed.
func (r *ProcessRuntime) StartServer(ctx context.Context, rec domain.ServerRecord) error {
	if rec.Config.Command == "" {
		return r.fail(rec.ID, fmt.Errorf("%w: server %q has no command", errors.ErrSandboxStartFailed, rec.ID))
	}

	r.tracker.Set(domain.SandboxStatus{
		ServerID:          rec.ID,
		State:             domain.SandboxStateInitializing,
		StartupPercentage: 10,
		Message:           "starting server process",
	})

	env := make([]string, 0, len(rec.Config.Env))
	for k, v := range rec.Config.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	r.logger.Info("Starting sandboxed server",
		"server", rec.ID,
		"command", rec.Config.Command,
		"args", rec.Config.Args,
	)

	c, err := client.NewStdioMCPClient(rec.Config.Command, env, rec.Config.Args...)
	if err != nil {
		return r.fail(rec.ID, fmt.Errorf("%w: spawn %q: %v", errors.ErrSandboxStartFailed, rec.ID, err))
	}

	r.tracker.Set(domain.SandboxStatus{
		ServerID:          rec.ID,
		State:             domain.SandboxStateInitializing,
		StartupPercentage: 50,
		Message:           "initializing MCP session",
	})

	initCtx, cancel := context.WithTimeout(ctx, r.initializeTimeout)
	defer cancel()

	initResult, err := c.Initialize(initCtx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: r.clientName, Version: r.clientVersion},
		},
	})
	if err != nil {
		_ = c.Close()
		return r.fail(rec.ID, fmt.Errorf("%w: initialize %q: %v", errors.ErrSandboxStartFailed, rec.ID, err))
	}

	r.logger.Info("Sandboxed server ready",
		"server", rec.ID,
		"serverInfo", fmt.Sprintf("%s@%s", initResult.ServerInfo.Name, initResult.ServerInfo.Version),
	)

	r.clients.Add(rec.ID, c)
	r.tracker.Set(domain.SandboxStatus{
		ServerID:          rec.ID,
		State:             domain.SandboxStateRunning,
		StartupPercentage: 100,
		Message:           "running",
	})

	return nil
}

// RemoveServer tears down the server's sandbox: the MCP client is closed,
// which terminates the child process, and all tracking state is dropped.
// Removing a server that is not running is a no-op, not an error.
func (r *ProcessRuntime) RemoveServer(_ context.Context, id string) error {
	c, ok := r.clients.Client(id)
	if !ok {
		r.tracker.Forget(id)
		return nil
	}

	if err := c.Close(); err != nil {
		// The process may already be gone; teardown stays idempotent.
		r.logger.Warn("Error closing MCP client", "server", id, "error", err)
	}

	r.clients.Remove(id)
	r.tracker.Forget(id)
	r.logger.Info("Sandboxed server removed", "server", id)

	return nil
}

func (r *ProcessRuntime) fail(id string, err error) error {
	r.logger.Error("Sandbox start failed", "server", id, "error", err)
	r.tracker.Set(domain.SandboxStatus{
		ServerID: id,
		State:    domain.SandboxStateError,
		Message:  "startup failed",
		Error:    err.Error(),
	})
	return err
}
