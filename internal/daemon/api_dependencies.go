package daemon

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/steward-ai/stewardd/internal/aggregator"
	"github.com/steward-ai/stewardd/internal/bus"
	"github.com/steward-ai/stewardd/internal/contracts"
	"github.com/steward-ai/stewardd/internal/inference"
	"github.com/steward-ai/stewardd/internal/lifecycle"
	"github.com/steward-ai/stewardd/internal/oauth"
)

// APIDependencies contains required dependencies for the APIServer.
type APIDependencies struct {
	// Logger for API server operations.
	Logger hclog.Logger

	// Addr specifies the network address to bind.
	Addr string

	// Orchestrator drives server install/uninstall.
	Orchestrator *lifecycle.Orchestrator

	// Servers provides read access to persisted server records.
	Servers contracts.ServerStore

	// Tools provides read access to persisted tool records.
	Tools contracts.ToolStore

	// Catalog is the aggregated in-memory tool view.
	Catalog *aggregator.Aggregator

	// Monitor exposes sandbox status snapshots.
	Monitor contracts.SandboxMonitor

	// Broker performs OAuth operations through the remote proxy.
	Broker *oauth.Broker

	// Backend is the inference backend for model listing and pulls.
	Backend contracts.InferenceBackend

	// Availability tracks which models are usable.
	Availability *inference.Availability

	// Events is the broadcast bus streamed to websocket subscribers.
	Events *bus.Bus
}

// Validate ensures all required dependencies are provided and valid.
func (d APIDependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	if err := validateAddr(d.Addr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.Addr, err)
	}
	if d.Orchestrator == nil {
		return fmt.Errorf("orchestrator cannot be nil")
	}
	if d.Servers == nil {
		return fmt.Errorf("server store cannot be nil")
	}
	if d.Tools == nil {
		return fmt.Errorf("tool store cannot be nil")
	}
	if d.Catalog == nil {
		return fmt.Errorf("catalog cannot be nil")
	}
	if d.Monitor == nil {
		return fmt.Errorf("sandbox monitor cannot be nil")
	}
	if d.Broker == nil {
		return fmt.Errorf("oauth broker cannot be nil")
	}
	if d.Backend == nil {
		return fmt.Errorf("inference backend cannot be nil")
	}
	if d.Availability == nil {
		return fmt.Errorf("availability tracker cannot be nil")
	}
	if d.Events == nil {
		return fmt.Errorf("event bus cannot be nil")
	}

	return nil
}
