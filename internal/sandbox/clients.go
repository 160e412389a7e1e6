package sandbox

import (
	"sync"

	"github.com/mark3labs/mcp-go/client"
)

// ClientManager holds the live MCP client connection for each running server.
// It is safe for concurrent use by multiple goroutines.
type ClientManager struct {
	mu      sync.RWMutex
	clients map[string]*client.Client
}

// NewClientManager creates an empty, concurrency-safe ClientManager.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[string]*client.Client),
	}
}

// Add registers a client by server ID.
// This method is safe for concurrent use.
func (cm *ClientManager) Add(id string, c *client.Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.clients[id] = c
}

// Client returns the client for the given server ID.
// It returns a boolean to indicate whether the client was found.
// This method is safe for concurrent use.
func (cm *ClientManager) Client(id string) (*client.Client, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.clients[id]
	return c, ok
}

// List returns all server IDs with live clients.
// This method is safe for concurrent use.
func (cm *ClientManager) List() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	ids := make([]string, 0, len(cm.clients))
	for id := range cm.clients {
		ids = append(ids, id)
	}
	return ids
}

// Remove deletes the client by server ID.
// This method is safe for concurrent use.
func (cm *ClientManager) Remove(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.clients, id)
}
