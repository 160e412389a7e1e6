package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/steward-ai/stewardd/internal/aggregator"
	"github.com/steward-ai/stewardd/internal/bus"
	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/errors"
)

type fakeServerStore struct {
	mu   sync.Mutex
	recs map[string]domain.ServerRecord
}

func newFakeServerStore() *fakeServerStore {
	return &fakeServerStore{recs: make(map[string]domain.ServerRecord)}
}

func (s *fakeServerStore) CreateServer(_ context.Context, rec domain.ServerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.ID]; ok {
		return fmt.Errorf("%w: %s", errors.ErrServerConflict, rec.ID)
	}
	s.recs[rec.ID] = rec
	return nil
}

func (s *fakeServerStore) GetServer(_ context.Context, id string) (domain.ServerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return domain.ServerRecord{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	return rec, nil
}

func (s *fakeServerStore) ListServers(context.Context) ([]domain.ServerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ServerRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeServerStore) UpdateServer(_ context.Context, rec domain.ServerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.ID]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, rec.ID)
	}
	s.recs[rec.ID] = rec
	return nil
}

func (s *fakeServerStore) UpdateServerStatus(_ context.Context, id string, status domain.ServerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	rec.Status = status
	s.recs[id] = rec
	return nil
}

func (s *fakeServerStore) DeleteServer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	delete(s.recs, id)
	return nil
}

func (s *fakeServerStore) status(id string) domain.ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs[id].Status
}

type fakeRuntime struct {
	mu       sync.Mutex
	startErr error
	started  []string
	removed  []string
}

func (r *fakeRuntime) StartServer(_ context.Context, rec domain.ServerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, rec.ID)
	return r.startErr
}

func (r *fakeRuntime) RemoveServer(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
	return nil
}

func (r *fakeRuntime) startedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.started))
	copy(out, r.started)
	return out
}

type fakeDiscoverer struct {
	err   error
	tools []string
}

func (d *fakeDiscoverer) Discover(_ context.Context, rec domain.ServerRecord) ([]domain.ToolRecord, error) {
	if d.err != nil {
		return nil, d.err
	}
	seeds := make([]domain.ToolRecord, 0, len(d.tools))
	for _, name := range d.tools {
		seeds = append(seeds, domain.ToolRecord{
			ID:       domain.ToolID(rec.ID, name),
			ServerID: rec.ID,
			Name:     name,
		})
	}
	return seeds, nil
}

type fakeAnalysis struct {
	mu    sync.Mutex
	saved []domain.ToolRecord
	runs  []string
}

func (a *fakeAnalysis) SaveDiscovered(_ context.Context, seeds []domain.ToolRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, seeds...)
	return nil
}

func (a *fakeAnalysis) Run(_ context.Context, serverID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, serverID)
}

func (a *fakeAnalysis) runCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.runs)
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls int
}

func (s *fakeSyncer) SyncCatalog(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func (s *fakeSyncer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	store        *fakeServerStore
	runtime      *fakeRuntime
	analysis     *fakeAnalysis
	catalog      *aggregator.Aggregator
}

func newOrchestratorFixture(t *testing.T, discoverer *fakeDiscoverer) *orchestratorFixture {
	t.Helper()

	store := newFakeServerStore()
	runtime := &fakeRuntime{}
	analysis := &fakeAnalysis{}
	catalog := aggregator.New()

	o := NewOrchestrator(
		hclog.NewNullLogger(),
		store,
		runtime,
		discoverer,
		analysis,
		catalog,
		bus.New(),
	)

	return &orchestratorFixture{
		orchestrator: o,
		store:        store,
		runtime:      runtime,
		analysis:     analysis,
		catalog:      catalog,
	}
}

func localSpec(id string) InstallSpec {
	return InstallSpec{
		ID:          id,
		DisplayName: "Filesystem",
		Config: domain.ServerConfig{
			Command: "npx",
			Args:    []string{"-y", "@modelcontextprotocol/server-filesystem"},
		},
	}
}

func TestOrchestrator_InstallProvisionsLocalServer(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{tools: []string{"readFile", "writeFile"}})

	rec, err := fx.orchestrator.Install(context.Background(), localSpec("fs"))
	require.NoError(t, err)
	require.Equal(t, "fs", rec.ID)
	require.Equal(t, domain.ServerTypeLocal, rec.ServerType)
	require.Equal(t, domain.ServerStatusInstalled, rec.Status)

	// Provisioning is asynchronous; wait for the catalog to fill.
	require.Eventually(t, func() bool {
		return fx.catalog.Count() == 2
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []string{"fs"}, fx.runtime.startedIDs())
	require.Eventually(t, func() bool {
		return fx.analysis.runCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestOrchestrator_InstallGeneratesIDWhenEmpty(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{})

	spec := localSpec("")
	rec, err := fx.orchestrator.Install(context.Background(), spec)
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	_, err = fx.store.GetServer(context.Background(), rec.ID)
	require.NoError(t, err)
}

func TestOrchestrator_RemoteURLAlwaysImpliesRemote(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{tools: []string{"search"}})

	// The explicit local flag loses to the presence of a URL.
	rec, err := fx.orchestrator.Install(context.Background(), InstallSpec{
		ID:          "web",
		DisplayName: "Web Search",
		Config:      domain.ServerConfig{URL: "https://mcp.example.com"},
		ServerType:  domain.ServerTypeLocal,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ServerTypeRemote, rec.ServerType)

	require.Eventually(t, func() bool {
		return fx.catalog.Count() == 1
	}, time.Second, 5*time.Millisecond)

	// Remote servers never touch the sandbox runtime.
	require.Empty(t, fx.runtime.startedIDs())
}

func TestOrchestrator_DuplicateInstallConflicts(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{})

	_, err := fx.orchestrator.Install(context.Background(), localSpec("fs"))
	require.NoError(t, err)

	dup := localSpec("fs")
	dup.DisplayName = "Other"
	_, err = fx.orchestrator.Install(context.Background(), dup)
	require.ErrorIs(t, err, errors.ErrServerConflict)

	rec, err := fx.store.GetServer(context.Background(), "fs")
	require.NoError(t, err)
	require.Equal(t, "Filesystem", rec.DisplayName)
}

func TestOrchestrator_InstallValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec InstallSpec
	}{
		{
			name: "missing display name",
			spec: InstallSpec{Config: domain.ServerConfig{Command: "npx"}},
		},
		{
			name: "local server without command",
			spec: InstallSpec{DisplayName: "Broken"},
		},
		{
			name: "explicit remote without URL",
			spec: InstallSpec{DisplayName: "Broken", ServerType: domain.ServerTypeRemote},
		},
		{
			name: "invalid status",
			spec: InstallSpec{
				DisplayName: "Broken",
				Config:      domain.ServerConfig{Command: "npx"},
				Status:      domain.ServerStatus("half-installed"),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fx := newOrchestratorFixture(t, &fakeDiscoverer{})
			_, err := fx.orchestrator.Install(context.Background(), tc.spec)
			require.ErrorIs(t, err, errors.ErrBadRequest)
		})
	}
}

func TestOrchestrator_SandboxFailureMarksFailedWithoutRollback(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{tools: []string{"readFile"}})
	fx.runtime.startErr = fmt.Errorf("%w: container exited", errors.ErrSandboxStartFailed)

	_, err := fx.orchestrator.Install(context.Background(), localSpec("fs"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return fx.store.status("fs") == domain.ServerStatusFailed
	}, time.Second, 5*time.Millisecond)

	// The record survives so the user can retry; no tools were discovered.
	_, err = fx.store.GetServer(context.Background(), "fs")
	require.NoError(t, err)
	require.Zero(t, fx.catalog.Count())
	require.Zero(t, fx.analysis.runCount())
}

func TestOrchestrator_UninstallDeletesRecordBeforeTeardown(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{tools: []string{"readFile"}})

	_, err := fx.orchestrator.Install(context.Background(), localSpec("fs"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return fx.catalog.Count() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, fx.orchestrator.Uninstall(context.Background(), "fs"))

	_, err = fx.store.GetServer(context.Background(), "fs")
	require.ErrorIs(t, err, errors.ErrServerNotFound)
	require.Zero(t, fx.catalog.Count())

	// A second uninstall reports not found rather than silently succeeding.
	err = fx.orchestrator.Uninstall(context.Background(), "fs")
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestOrchestrator_UninstallNotifiesSyncers(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{})
	syncer := &fakeSyncer{}
	fx.orchestrator.RegisterSyncer(syncer)

	_, err := fx.orchestrator.Install(context.Background(), localSpec("fs"))
	require.NoError(t, err)

	require.NoError(t, fx.orchestrator.Uninstall(context.Background(), "fs"))
	require.GreaterOrEqual(t, syncer.callCount(), 1)
}

func TestOrchestrator_InstallOAuthPendingDefersProvisioning(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{tools: []string{"listRepos"}})

	spec := localSpec("gh")
	spec.Status = domain.ServerStatusOAuthPending
	rec, err := fx.orchestrator.Install(context.Background(), spec)
	require.NoError(t, err)
	require.Equal(t, domain.ServerStatusOAuthPending, rec.Status)

	// While authorization is outstanding the sandbox must not start and no
	// tools may be discovered.
	require.Never(t, func() bool {
		return len(fx.runtime.startedIDs()) > 0 || fx.catalog.Count() > 0
	}, 100*time.Millisecond, 5*time.Millisecond)

	_, err = fx.orchestrator.FinishAuthorization(context.Background(), "gh", &domain.TokenSet{AccessToken: "at"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return fx.catalog.Count() == 1
	}, time.Second, 5*time.Millisecond)

	// Exactly one sandbox start, triggered by the authorization completion.
	require.Equal(t, []string{"gh"}, fx.runtime.startedIDs())
}

func TestOrchestrator_FinishAuthorization(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{tools: []string{"listRepos"}})

	spec := localSpec("gh")
	spec.Status = domain.ServerStatusOAuthPending
	spec.Config.Env = map[string]string{"ACCESS_TOKEN": "user-set"}
	_, err := fx.orchestrator.Install(context.Background(), spec)
	require.NoError(t, err)

	_, err = fx.orchestrator.FinishAuthorization(context.Background(), "gh", nil)
	require.ErrorIs(t, err, errors.ErrBadRequest)

	_, err = fx.orchestrator.FinishAuthorization(context.Background(), "gh", &domain.TokenSet{RefreshToken: "rt"})
	require.ErrorIs(t, err, errors.ErrBadRequest)

	rec, err := fx.orchestrator.FinishAuthorization(context.Background(), "gh", &domain.TokenSet{
		AccessToken:  "at",
		RefreshToken: "rt",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ServerStatusInstalled, rec.Status)
	// A user-supplied env value is never overwritten by a token.
	require.Equal(t, "user-set", rec.Config.Env[EnvAccessToken])
	require.Equal(t, "rt", rec.Config.Env[EnvRefreshToken])

	require.Eventually(t, func() bool {
		return fx.catalog.Count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestOrchestrator_FinishAuthorizationUnknownServer(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{})

	_, err := fx.orchestrator.FinishAuthorization(context.Background(), "missing", &domain.TokenSet{AccessToken: "at"})
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestOrchestrator_RestoreSkipsNonInstalledServers(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, &fakeDiscoverer{tools: []string{"t"}})
	ctx := context.Background()

	installed := localSpec("up")
	_, err := fx.orchestrator.Install(ctx, installed)
	require.NoError(t, err)

	pending := localSpec("pending")
	pending.Status = domain.ServerStatusOAuthPending
	_, err = fx.orchestrator.Install(ctx, pending)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(fx.runtime.startedIDs()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, fx.orchestrator.Restore(ctx))

	// Only the installed server was started a second time; the pending one was
	// never started at all.
	started := fx.runtime.startedIDs()
	require.Len(t, started, 2)
	for _, id := range started {
		require.Equal(t, "up", id)
	}
}

func TestMapTokensIntoEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		env        map[string]string
		userValues map[string]string
		tokens     domain.TokenSet
		want       map[string]string
	}{
		{
			name:   "tokens mapped into empty env",
			tokens: domain.TokenSet{AccessToken: "at", RefreshToken: "rt"},
			want:   map[string]string{"ACCESS_TOKEN": "at", "REFRESH_TOKEN": "rt"},
		},
		{
			name:   "existing env value wins",
			env:    map[string]string{"ACCESS_TOKEN": "mine"},
			tokens: domain.TokenSet{AccessToken: "at"},
			want:   map[string]string{"ACCESS_TOKEN": "mine"},
		},
		{
			name:       "user config value blocks mapping",
			userValues: map[string]string{"ACCESS_TOKEN": "configured"},
			tokens:     domain.TokenSet{AccessToken: "at", RefreshToken: "rt"},
			want:       map[string]string{"REFRESH_TOKEN": "rt"},
		},
		{
			name:   "empty refresh token is not mapped",
			tokens: domain.TokenSet{AccessToken: "at"},
			want:   map[string]string{"ACCESS_TOKEN": "at"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := mapTokensIntoEnv(tc.env, tc.userValues, &tc.tokens)
			require.Equal(t, tc.want, got)
		})
	}
}
