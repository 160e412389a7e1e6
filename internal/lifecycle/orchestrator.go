// Package lifecycle implements the install/uninstall state machine for MCP
// servers: persist the record, provision the sandbox, discover tools, kick off
// background classification, and keep the aggregated catalog in sync.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/steward-ai/stewardd/internal/aggregator"
	"github.com/steward-ai/stewardd/internal/bus"
	"github.com/steward-ai/stewardd/internal/contracts"
	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/errors"
)

const (
	// EnvAccessToken and EnvRefreshToken are the environment variables OAuth
	// tokens are mapped into for local servers that authenticate via env.
	EnvAccessToken  = "ACCESS_TOKEN"
	EnvRefreshToken = "REFRESH_TOKEN"
)

// AnalysisRunner is the orchestrator's view of the analysis pipeline.
type AnalysisRunner interface {
	// SaveDiscovered persists discovered tool seeds with null classification.
	SaveDiscovered(ctx context.Context, seeds []domain.ToolRecord) error

	// Run classifies every unanalyzed tool for the server. Intended to be
	// launched as a goroutine; it broadcasts its own progress.
	Run(ctx context.Context, serverID string)
}

// InstallSpec carries everything needed to install a server.
type InstallSpec struct {
	// ID is optional: catalog servers supply their catalog name, custom servers
	// leave it empty and receive a generated UUID.
	ID          string
	DisplayName string
	Config      domain.ServerConfig

	UserConfigValues map[string]string

	OAuthTokens           *domain.TokenSet
	OAuthClientInfo       *domain.OAuthDocument
	OAuthServerMetadata   *domain.OAuthDocument
	OAuthResourceMetadata *domain.OAuthDocument

	// Status overrides the default "installed" status, e.g. "oauth_pending"
	// when persisting mid OAuth flow.
	Status domain.ServerStatus

	// ServerType is optional; a remote URL in Config always implies remote
	// regardless of this field.
	ServerType domain.ServerType
}

// Orchestrator drives server lifecycle end to end.
// NewOrchestrator should be used to create instances of Orchestrator.
type Orchestrator struct {
	logger     hclog.Logger
	servers    contracts.ServerStore
	runtime    contracts.SandboxRuntime
	discoverer contracts.ToolDiscoverer
	analysis   AnalysisRunner
	catalog    *aggregator.Aggregator
	events     *bus.Bus

	mu      sync.RWMutex
	syncers []contracts.CatalogSyncer
}

// NewOrchestrator creates a lifecycle orchestrator.
func NewOrchestrator(
	logger hclog.Logger,
	servers contracts.ServerStore,
	runtime contracts.SandboxRuntime,
	discoverer contracts.ToolDiscoverer,
	analysis AnalysisRunner,
	catalog *aggregator.Aggregator,
	events *bus.Bus,
) *Orchestrator {
	return &Orchestrator{
		logger:     logger.Named("lifecycle"),
		servers:    servers,
		runtime:    runtime,
		discoverer: discoverer,
		analysis:   analysis,
		catalog:    catalog,
		events:     events,
	}
}

// RegisterSyncer adds an externally-connected catalog mirror that is
// re-synchronized after every install and uninstall.
// This method is safe for concurrent use.
func (o *Orchestrator) RegisterSyncer(s contracts.CatalogSyncer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.syncers = append(o.syncers, s)
}

// Install validates and persists a new server, then provisions it in the
// background. The call returns as soon as the record is durable: sandbox
// startup, discovery and classification all proceed asynchronously and report
// through the event bus.
//
// A sandbox start failure after persistence does not roll the record back; the
// record transitions to "failed" so the user can retry without losing
// configuration.
func (o *Orchestrator) Install(ctx context.Context, spec InstallSpec) (domain.ServerRecord, error) {
	rec, err := o.buildRecord(spec)
	if err != nil {
		return domain.ServerRecord{}, err
	}

	// Pre-check is an optimization for a friendly error; the store's primary
	// key is the real uniqueness enforcement.
	if _, err := o.servers.GetServer(ctx, rec.ID); err == nil {
		return domain.ServerRecord{}, fmt.Errorf("%w: server %q already installed", errors.ErrServerConflict, rec.ID)
	}

	if err := o.servers.CreateServer(ctx, rec); err != nil {
		return domain.ServerRecord{}, fmt.Errorf("install %q: %w", rec.ID, err)
	}

	o.logger.Info("Server installed", "server", rec.ID, "type", rec.ServerType, "status", rec.Status)

	// Only a fully installed record is provisioned now. A record persisted as
	// oauth_pending has no tokens yet; FinishAuthorization provisions it once
	// it transitions to installed.
	if rec.Status == domain.ServerStatusInstalled {
		go o.provision(context.Background(), rec)
	}

	return rec, nil
}

// Uninstall removes a server: the record is deleted first so a crash
// mid-teardown cannot leave a ghost installed server, then the sandbox is torn
// down (idempotently) and the catalog re-synchronized.
func (o *Orchestrator) Uninstall(ctx context.Context, id string) error {
	if err := o.servers.DeleteServer(ctx, id); err != nil {
		return fmt.Errorf("uninstall %q: %w", id, err)
	}

	if err := o.runtime.RemoveServer(ctx, id); err != nil {
		// Teardown failure after record deletion is logged, not surfaced:
		// the server is gone from the user's perspective either way.
		o.logger.Error("Sandbox teardown failed after uninstall", "server", id, "error", err)
	}

	o.catalog.RemoveServer(id)
	o.logger.Info("Server uninstalled", "server", id)
	o.syncCatalog(ctx)

	return nil
}

// FinishAuthorization completes a pending OAuth install: tokens are attached
// to the record, mapped into the environment, and the server transitions to
// installed and is provisioned.
func (o *Orchestrator) FinishAuthorization(ctx context.Context, id string, tokens *domain.TokenSet) (domain.ServerRecord, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return domain.ServerRecord{}, fmt.Errorf("%w: access token is required", errors.ErrBadRequest)
	}

	rec, err := o.servers.GetServer(ctx, id)
	if err != nil {
		return domain.ServerRecord{}, err
	}

	rec.OAuthTokens = tokens
	rec.Config.Env = mapTokensIntoEnv(rec.Config.Env, rec.UserConfigValues, tokens)
	rec.Status = domain.ServerStatusInstalled

	if err := o.servers.UpdateServer(ctx, rec); err != nil {
		return domain.ServerRecord{}, fmt.Errorf("finish authorization for %q: %w", id, err)
	}

	o.logger.Info("Authorization completed", "server", id)

	go o.provision(context.Background(), rec)

	return rec, nil
}

// Restore re-provisions every installed server after a daemon restart.
// Servers are restored concurrently; a single server failing to come back
// marks that server failed without aborting the others.
func (o *Orchestrator) Restore(ctx context.Context) error {
	recs, err := o.servers.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("list servers for restore: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, rec := range recs {
		if rec.Status != domain.ServerStatusInstalled {
			continue
		}
		g.Go(func() error {
			o.provision(ctx, rec)
			return nil
		})
	}

	return g.Wait()
}

// provision runs the post-persistence half of install: sandbox start (local
// only), tool discovery, synchronous seed save, background classification and
// catalog sync. It never returns an error; failures land in the record status
// and the event bus.
func (o *Orchestrator) provision(ctx context.Context, rec domain.ServerRecord) {
	if !rec.IsRemote() {
		if err := o.runtime.StartServer(ctx, rec); err != nil {
			o.logger.Error("Sandbox start failed", "server", rec.ID, "error", err)
			if serr := o.servers.UpdateServerStatus(ctx, rec.ID, domain.ServerStatusFailed); serr != nil {
				o.logger.Error("Failed to record failed status", "server", rec.ID, "error", serr)
			}
			return
		}
	}

	seeds, err := o.discoverer.Discover(ctx, rec)
	if err != nil {
		o.logger.Error("Tool discovery failed", "server", rec.ID, "error", err)
		o.syncCatalog(ctx)
		return
	}

	entries := make([]aggregator.Entry, 0, len(seeds))
	for _, s := range seeds {
		entries = append(entries, aggregator.Entry{
			ID:          s.ID,
			ServerID:    s.ServerID,
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.InputSchema,
		})
	}
	o.catalog.SetServerTools(rec.ID, entries)

	if err := o.analysis.SaveDiscovered(ctx, seeds); err != nil {
		o.logger.Error("Failed to save discovered tools", "server", rec.ID, "error", err)
	} else {
		// Fire-and-forget: classification reports through the bus and must
		// never block or abort a lifecycle operation.
		go o.analysis.Run(context.Background(), rec.ID)
	}

	o.syncCatalog(ctx)
}

// syncCatalog re-synchronizes every registered external mirror and broadcasts
// the new catalog size. Sync failures are logged, never surfaced.
func (o *Orchestrator) syncCatalog(ctx context.Context) {
	o.mu.RLock()
	syncers := make([]contracts.CatalogSyncer, len(o.syncers))
	copy(syncers, o.syncers)
	o.mu.RUnlock()

	for _, s := range syncers {
		if err := s.SyncCatalog(ctx); err != nil {
			o.logger.Warn("Catalog sync failed", "error", err)
		}
	}

	if err := o.events.Publish(bus.ToolCatalogEvent(o.catalog.Count())); err != nil {
		o.logger.Error("Failed to publish catalog event", "error", err)
	}
}

// buildRecord validates the spec and normalizes it into a persistable record.
func (o *Orchestrator) buildRecord(spec InstallSpec) (domain.ServerRecord, error) {
	if spec.DisplayName == "" {
		return domain.ServerRecord{}, fmt.Errorf("%w: display name is required", errors.ErrBadRequest)
	}

	// A remote URL always implies remote, whatever the explicit flag says.
	serverType := spec.ServerType
	if spec.Config.URL != "" {
		serverType = domain.ServerTypeRemote
	} else if serverType == "" {
		serverType = domain.ServerTypeLocal
	}

	switch serverType {
	case domain.ServerTypeLocal:
		if spec.Config.Command == "" {
			return domain.ServerRecord{}, fmt.Errorf("%w: local server requires a command", errors.ErrBadRequest)
		}
	case domain.ServerTypeRemote:
		if spec.Config.URL == "" {
			return domain.ServerRecord{}, fmt.Errorf("%w: remote server requires a URL", errors.ErrBadRequest)
		}
	default:
		return domain.ServerRecord{}, fmt.Errorf("%w: unknown server type %q", errors.ErrBadRequest, serverType)
	}

	status := spec.Status
	if status == "" {
		status = domain.ServerStatusInstalled
	}
	if !status.Valid() {
		return domain.ServerRecord{}, fmt.Errorf("%w: invalid status %q", errors.ErrBadRequest, status)
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}

	cfg := spec.Config
	if spec.OAuthTokens != nil {
		cfg.Env = mapTokensIntoEnv(cfg.Env, spec.UserConfigValues, spec.OAuthTokens)
	}

	return domain.ServerRecord{
		ID:                    id,
		DisplayName:           spec.DisplayName,
		Config:                cfg,
		UserConfigValues:      spec.UserConfigValues,
		OAuthTokens:           spec.OAuthTokens,
		OAuthClientInfo:       spec.OAuthClientInfo,
		OAuthServerMetadata:   spec.OAuthServerMetadata,
		OAuthResourceMetadata: spec.OAuthResourceMetadata,
		Status:                status,
		ServerType:            serverType,
		CreatedAt:             time.Now().UTC(),
	}, nil
}

// mapTokensIntoEnv maps OAuth tokens into the launch environment without
// overwriting anything the user set explicitly, either directly in the env or
// via a user config value of the same name.
func mapTokensIntoEnv(env map[string]string, userValues map[string]string, tokens *domain.TokenSet) map[string]string {
	out := make(map[string]string, len(env)+2)
	for k, v := range env {
		out[k] = v
	}

	setIfAbsent := func(key, value string) {
		if value == "" {
			return
		}
		if _, ok := out[key]; ok {
			return
		}
		if _, ok := userValues[key]; ok {
			return
		}
		out[key] = value
	}

	setIfAbsent(EnvAccessToken, tokens.AccessToken)
	setIfAbsent(EnvRefreshToken, tokens.RefreshToken)

	return out
}
