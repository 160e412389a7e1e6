// Package aggregator maintains the merged, in-memory view of every tool
// exposed by running servers plus the built-in server, addressable by
// canonical tool ID.
package aggregator

import (
	"encoding/json"
	"sync"
	"unicode/utf8"

	"github.com/steward-ai/stewardd/internal/domain"
)

// MaxModelToolNameLength is the longest tool name the downstream model API
// accepts. Longer names are truncated in the model projection only; the
// canonical ID is never altered.
const MaxModelToolNameLength = 64

// BuiltinServerID is the reserved source ID for built-in tools.
const BuiltinServerID = "builtin"

// Entry is one aggregated tool: its descriptor and source server.
type Entry struct {
	ID          string          `json:"id"`
	ServerID    string          `json:"serverId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ModelTool is the projection handed to a model-calling component.
type ModelTool struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Aggregator merges per-server tool sets into one namespace.
// It is safe for concurrent use by multiple goroutines.
type Aggregator struct {
	mu       sync.RWMutex
	tools    map[string]Entry
	byServer map[string][]string
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		tools:    make(map[string]Entry),
		byServer: make(map[string][]string),
	}
}

// SetServerTools replaces the tool set contributed by one server. Entries are
// keyed by the canonical ID derived from the server and tool name, so name
// collisions across servers cannot clobber each other.
func (a *Aggregator) SetServerTools(serverID string, entries []Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range a.byServer[serverID] {
		delete(a.tools, id)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		e.ServerID = serverID
		if e.ID == "" {
			e.ID = domain.ToolID(serverID, e.Name)
		}
		a.tools[e.ID] = e
		ids = append(ids, e.ID)
	}
	a.byServer[serverID] = ids
}

// RemoveServer drops all tools contributed by a server.
// Removing an unknown server is a no-op.
func (a *Aggregator) RemoveServer(serverID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range a.byServer[serverID] {
		delete(a.tools, id)
	}
	delete(a.byServer, serverID)
}

// AllTools returns a copy of the full merged view keyed by canonical ID.
func (a *Aggregator) AllTools() map[string]Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]Entry, len(a.tools))
	for id, e := range a.tools {
		out[id] = e
	}
	return out
}

// ToolsByID returns the subset of requested IDs that exist. The result never
// contains an entry outside the requested set.
func (a *Aggregator) ToolsByID(ids []string) map[string]Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]Entry, len(ids))
	for _, id := range ids {
		if e, ok := a.tools[id]; ok {
			out[id] = e
		}
	}
	return out
}

// Count returns the number of aggregated tools.
func (a *Aggregator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.tools)
}

// ForModel projects entries for the model-calling component: entries with an
// empty name are dropped rather than passed through malformed, and names
// longer than MaxModelToolNameLength runes are truncated for API
// compatibility. Canonical IDs pass through unchanged.
func ForModel(entries []Entry) []ModelTool {
	out := make([]ModelTool, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		out = append(out, ModelTool{
			ID:          e.ID,
			Name:        truncateName(e.Name),
			Description: e.Description,
			InputSchema: e.InputSchema,
		})
	}
	return out
}

func truncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxModelToolNameLength {
		return name
	}
	runes := []rune(name)
	return string(runes[:MaxModelToolNameLength])
}
