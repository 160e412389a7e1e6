package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ToolID builds the canonical tool identifier from its server and name.
// The ID is unique across the aggregated namespace; name collisions across
// different servers are resolved by this prefixing.
func ToolID(serverID, name string) string {
	return fmt.Sprintf("%s::%s", serverID, name)
}

// ToolRecord is the durable record for a discovered tool.
//
// IsRead, IsWrite and AnalyzedAt are nil until classification completes.
// Re-discovery must never regress them from non-nil back to nil: upserts
// follow a "new value if present, else keep existing" merge for these fields,
// while Name, Description and InputSchema always take the freshest discovery data.
type ToolRecord struct {
	// ID is "{serverID}::{name}".
	ID          string          `json:"id"`
	ServerID    string          `json:"serverId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`

	IsRead     *bool      `json:"isRead"`
	IsWrite    *bool      `json:"isWrite"`
	AnalyzedAt *time.Time `json:"analyzedAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Analyzed reports whether the tool has been classified.
func (t ToolRecord) Analyzed() bool {
	return t.AnalyzedAt != nil
}
