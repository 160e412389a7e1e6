package bus

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/steward-ai/stewardd/internal/contracts"
)

// Heartbeat periodically re-broadcasts the aggregated sandbox status summary,
// whether or not anything changed. A newly connected subscriber converges to
// current state within one interval without a separate sync request.
type Heartbeat struct {
	logger   hclog.Logger
	bus      *Bus
	monitor  contracts.SandboxMonitor
	interval time.Duration
}

// NewHeartbeat creates a heartbeat publisher. interval must be positive.
func NewHeartbeat(logger hclog.Logger, b *Bus, monitor contracts.SandboxMonitor, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = time.Second
	}
	return &Heartbeat{
		logger:   logger.Named("heartbeat"),
		bus:      b,
		monitor:  monitor,
		interval: interval,
	}
}

// Run broadcasts until the context is canceled.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("Stopping status heartbeat")
			return
		case <-ticker.C:
			if err := h.bus.Publish(ServerStatusEvent(h.monitor.Summary())); err != nil {
				h.logger.Error("Failed to publish status heartbeat", "error", err)
			}
		}
	}
}
