// Package contracts defines the consumer-side interfaces for the daemon's
// collaborators: the registry store, the sandbox runtime, the inference
// backend and catalog synchronization.
package contracts

import (
	"context"

	"github.com/steward-ai/stewardd/internal/domain"
)

// ServerStore provides durable CRUD access to server records keyed by ID.
//
// ID uniqueness is enforced at the store level (primary key); callers may
// pre-check for conflicts as an optimization but must not rely on the
// pre-check alone.
type ServerStore interface {
	// CreateServer persists a new record. It returns errors.ErrServerConflict
	// (wrapped) if the ID already exists.
	CreateServer(ctx context.Context, rec domain.ServerRecord) error

	// GetServer returns the record for the given ID, or errors.ErrServerNotFound.
	GetServer(ctx context.Context, id string) (domain.ServerRecord, error)

	// ListServers returns all persisted records.
	ListServers(ctx context.Context) ([]domain.ServerRecord, error)

	// UpdateServer replaces an existing record, or returns errors.ErrServerNotFound.
	UpdateServer(ctx context.Context, rec domain.ServerRecord) error

	// UpdateServerStatus transitions the lifecycle status of an existing record.
	UpdateServerStatus(ctx context.Context, id string, status domain.ServerStatus) error

	// DeleteServer removes the record and cascades to its tools.
	// It returns errors.ErrServerNotFound if no record exists.
	DeleteServer(ctx context.Context, id string) error
}

// ToolStore provides durable access to tool records.
type ToolStore interface {
	// UpsertTool inserts or updates a tool record. Name, description and input
	// schema are always overwritten with the incoming values; IsRead, IsWrite
	// and AnalyzedAt follow last-non-null-wins and never regress to nil.
	UpsertTool(ctx context.Context, rec domain.ToolRecord) error

	// ToolsByServer returns all tool records for a server.
	ToolsByServer(ctx context.Context, serverID string) ([]domain.ToolRecord, error)
}
