// Package bus provides the in-process broadcast channel delivering status and
// progress to UI subscribers. Delivery is at-most-once per publish per
// subscriber: slow subscribers miss events rather than blocking publishers,
// and there is no backlog or replay. The bus is nil-safe: Publish on a nil
// *Bus is a no-op.
package bus

import (
	"fmt"
	"sync"

	"github.com/steward-ai/stewardd/internal/domain"
)

const (
	// TypeServerStatus carries the aggregated sandbox status summary.
	TypeServerStatus Type = "server_status"

	// TypeAnalysisProgress carries tool analysis progress for one server.
	TypeAnalysisProgress Type = "analysis_progress"

	// TypeModelPull carries normalized model download progress.
	TypeModelPull Type = "model_pull"

	// TypeToolCatalog signals that the aggregated tool catalog changed.
	TypeToolCatalog Type = "tool_catalog"
)

// Type tags an event envelope. The set of tags is closed; Publish rejects
// envelopes carrying an unknown tag.
type Type string

// knownTypes is the closed set of valid envelope tags. Payload shapes per tag
// must remain backward-compatible for subscribers.
var knownTypes = map[Type]struct{}{
	TypeServerStatus:     {},
	TypeAnalysisProgress: {},
	TypeModelPull:        {},
	TypeToolCatalog:      {},
}

// Envelope is the broadcast message: a tag and a tag-specific payload.
type Envelope struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload"`
}

// ServerStatusPayload is the payload for TypeServerStatus.
type ServerStatusPayload struct {
	Servers []domain.SandboxStatus `json:"servers"`
}

// ModelPullPayload is the payload for TypeModelPull.
type ModelPullPayload struct {
	Model    string `json:"model"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// ToolCatalogPayload is the payload for TypeToolCatalog.
type ToolCatalogPayload struct {
	ToolCount int `json:"toolCount"`
}

// ServerStatusEvent builds a validated server status envelope.
func ServerStatusEvent(servers []domain.SandboxStatus) Envelope {
	return Envelope{Type: TypeServerStatus, Payload: ServerStatusPayload{Servers: servers}}
}

// AnalysisProgressEvent builds a validated analysis progress envelope.
func AnalysisProgressEvent(p domain.AnalysisProgress) Envelope {
	return Envelope{Type: TypeAnalysisProgress, Payload: p}
}

// ModelPullEvent builds a validated model pull envelope.
func ModelPullEvent(model, status string, progress int) Envelope {
	return Envelope{Type: TypeModelPull, Payload: ModelPullPayload{Model: model, Status: status, Progress: progress}}
}

// ToolCatalogEvent builds a validated tool catalog envelope.
func ToolCatalogEvent(toolCount int) Envelope {
	return Envelope{Type: TypeToolCatalog, Payload: ToolCatalogPayload{ToolCount: toolCount}}
}

// Bus is a non-blocking broadcast bus for Envelope messages.
// It is safe for concurrent use by multiple goroutines.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Envelope]struct{}
	// recvToSend maps the receive-only channel handed to a subscriber back to
	// the bidirectional channel stored in subs, so Unsubscribe can accept the
	// caller's view of the channel.
	recvToSend map[<-chan Envelope]chan Envelope
}

// New creates an empty bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Envelope]struct{}),
		recvToSend: make(map[<-chan Envelope]chan Envelope),
	}
}

// Publish broadcasts the envelope to all subscribers. If a subscriber's
// channel is full the envelope is dropped for that subscriber. Publishing an
// envelope with an unknown tag returns an error and delivers nothing.
// Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Envelope) error {
	if b == nil {
		return nil
	}
	if _, ok := knownTypes[e.Type]; !ok {
		return fmt.Errorf("unknown event type: %q", e.Type)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full, drop rather than block.
		}
	}

	return nil
}

// Subscribe returns a channel receiving published envelopes. The caller must
// eventually call Unsubscribe to release resources. bufSize controls the
// channel buffer.
func (b *Bus) Subscribe(bufSize int) <-chan Envelope {
	ch := make(chan Envelope, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call with
// a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
