// Package daemon wires the long-lived services together and runs them: the
// registry store, sandbox runtime, tool catalog, analysis pipeline, OAuth
// broker, event bus and the HTTP API.
package daemon

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/steward-ai/stewardd/internal/aggregator"
	"github.com/steward-ai/stewardd/internal/analysis"
	"github.com/steward-ai/stewardd/internal/bus"
	"github.com/steward-ai/stewardd/internal/discovery"
	"github.com/steward-ai/stewardd/internal/files"
	"github.com/steward-ai/stewardd/internal/inference"
	"github.com/steward-ai/stewardd/internal/lifecycle"
	"github.com/steward-ai/stewardd/internal/oauth"
	"github.com/steward-ai/stewardd/internal/sandbox"
	"github.com/steward-ai/stewardd/internal/store"
)

// Daemon owns every long-lived service in the process.
// NewDaemon should be used to create instances of Daemon.
type Daemon struct {
	logger       hclog.Logger
	store        *store.Store
	events       *bus.Bus
	heartbeat    *bus.Heartbeat
	orchestrator *lifecycle.Orchestrator
	backend      *inference.Client
	availability *inference.Availability
	apiServer    *APIServer
}

// NewDaemon constructs the full service graph from validated dependencies.
func NewDaemon(deps Dependencies, opt ...Option) (*Daemon, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies for daemon: %w", err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid daemon options: %w", err)
	}

	logger := deps.Logger.Named("daemon")
	cfg := deps.Config

	dbPath, err := resolveDatabasePath(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve registry database path: %w", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry store: %w", err)
	}

	events := bus.New()
	catalog := aggregator.New()
	catalog.SetServerTools(aggregator.BuiltinServerID, aggregator.BuiltinEntries())

	clients := sandbox.NewClientManager()
	tracker := sandbox.NewStatusTracker()
	runtime := sandbox.NewProcessRuntime(deps.Logger, clients, tracker)

	backend := inference.NewClient(cfg.Inference.Addr)
	availability := inference.NewAvailability(0, 0)

	discoverer := discovery.NewDiscoverer(deps.Logger, clients)
	pipeline := analysis.NewPipeline(
		deps.Logger,
		st,
		backend,
		availability,
		events,
		cfg.Inference.ClassifyModel,
	)

	orchestrator := lifecycle.NewOrchestrator(
		deps.Logger,
		st,
		runtime,
		discoverer,
		pipeline,
		catalog,
		events,
	)

	broker := oauth.NewBroker(deps.Logger, cfg.OAuth.ProxyURL)

	apiOpts := opts.APIOptions
	if cfg.API.CORSEnabled {
		apiOpts = append(apiOpts,
			WithCORSEnabled(true),
			WithCORSAllowOrigins(cfg.API.CORSAllowOrigins),
		)
	}

	apiServer, err := NewAPIServer(APIDependencies{
		Logger:       deps.Logger,
		Addr:         cfg.API.Addr,
		Orchestrator: orchestrator,
		Servers:      st,
		Tools:        st,
		Catalog:      catalog,
		Monitor:      tracker,
		Broker:       broker,
		Backend:      backend,
		Availability: availability,
		Events:       events,
	}, apiOpts...)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create API server: %w", err)
	}

	return &Daemon{
		logger:       logger,
		store:        st,
		events:       events,
		heartbeat:    bus.NewHeartbeat(deps.Logger, events, tracker, opts.HeartbeatInterval),
		orchestrator: orchestrator,
		backend:      backend,
		availability: availability,
		apiServer:    apiServer,
	}, nil
}

// resolveDatabasePath places a relative database file under the user-specific
// data directory, which is created with owner-only permissions since it holds
// OAuth tokens. Absolute paths and the in-memory sentinel pass through as-is.
func resolveDatabasePath(path string) (string, error) {
	if path == ":memory:" || filepath.IsAbs(path) {
		return path, nil
	}

	dir, err := files.UserSpecificDataDir()
	if err != nil {
		return "", err
	}
	if err := files.EnsureAtLeastSecureDir(dir); err != nil {
		return "", err
	}

	return filepath.Join(dir, path), nil
}

// StartAndManage runs the daemon until the context is canceled: it seeds model
// availability, restores installed servers, starts the heartbeat and serves
// the API.
func (d *Daemon) StartAndManage(ctx context.Context) error {
	defer func() {
		if err := d.store.Close(); err != nil {
			d.logger.Error("Failed to close registry store", "error", err)
		}
	}()

	// Seed availability from what the backend already has installed. The
	// backend being down here is fine: classification falls back to the
	// heuristic until it comes up.
	if models, err := d.backend.ListModels(ctx); err != nil {
		d.logger.Warn("Could not list installed models", "error", err)
	} else {
		d.availability.MarkAll(models)
		d.logger.Info("Seeded model availability", "models", len(models))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.heartbeat.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := d.orchestrator.Restore(gctx); err != nil {
			// A failed restore leaves individual servers marked failed; the
			// daemon itself keeps running.
			d.logger.Error("Server restore incomplete", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		return d.apiServer.Start(gctx)
	})

	return g.Wait()
}
