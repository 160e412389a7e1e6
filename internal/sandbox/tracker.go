package sandbox

import (
	"maps"
	"slices"
	"sync"

	"github.com/steward-ai/stewardd/internal/domain"
)

// StatusTracker records the latest sandbox status per server and serves
// point-in-time snapshots. Readers only ever see copies, so reads race safely
// against concurrent start/stop updates.
type StatusTracker struct {
	mu       sync.RWMutex
	statuses map[string]domain.SandboxStatus
}

// NewStatusTracker creates an empty, concurrency-safe StatusTracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		statuses: make(map[string]domain.SandboxStatus),
	}
}

// Status returns the snapshot for a single server.
// It returns a boolean to indicate whether the server is tracked.
// This method is safe for concurrent use.
func (t *StatusTracker) Status(id string) (domain.SandboxStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.statuses[id]
	return s, ok
}

// Summary returns a snapshot of all tracked sandboxes.
// This method is safe for concurrent use.
func (t *StatusTracker) Summary() []domain.SandboxStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Collect(maps.Values(t.statuses))
}

// Set records the status snapshot for a server, overwriting any previous one.
// This method is safe for concurrent use.
func (t *StatusTracker) Set(status domain.SandboxStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[status.ServerID] = status
}

// Forget drops a server from tracking. Forgetting an untracked server is a
// no-op. This method is safe for concurrent use.
func (t *StatusTracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, id)
}
