package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func serverFixture(id string) domain.ServerRecord {
	return domain.ServerRecord{
		ID:          id,
		DisplayName: "Filesystem",
		Config: domain.ServerConfig{
			Command: "npx",
			Args:    []string{"-y", "@modelcontextprotocol/server-filesystem"},
			Env:     map[string]string{"HOME": "/home/user"},
		},
		Status:     domain.ServerStatusInstalled,
		ServerType: domain.ServerTypeLocal,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestStore_CreateAndGetServer(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	want := serverFixture("fs")
	want.UserConfigValues = map[string]string{"ROOT": "/tmp"}
	want.OAuthTokens = &domain.TokenSet{AccessToken: "at", RefreshToken: "rt"}

	require.NoError(t, s.CreateServer(ctx, want))

	got, err := s.GetServer(ctx, "fs")
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.DisplayName, got.DisplayName)
	require.Equal(t, want.Config, got.Config)
	require.Equal(t, want.UserConfigValues, got.UserConfigValues)
	require.NotNil(t, got.OAuthTokens)
	require.Equal(t, "at", got.OAuthTokens.AccessToken)
	require.Equal(t, want.Status, got.Status)
	require.Equal(t, want.ServerType, got.ServerType)
}

func TestStore_CreateServerConflict(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	first := serverFixture("fs")
	require.NoError(t, s.CreateServer(ctx, first))

	dup := serverFixture("fs")
	dup.DisplayName = "Other"
	err := s.CreateServer(ctx, dup)
	require.ErrorIs(t, err, errors.ErrServerConflict)

	// The first record is unaffected by the failed duplicate.
	got, err := s.GetServer(ctx, "fs")
	require.NoError(t, err)
	require.Equal(t, "Filesystem", got.DisplayName)
}

func TestStore_GetServerNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	_, err := s.GetServer(context.Background(), "missing")
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestStore_UpdateServerStatus(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateServer(ctx, serverFixture("fs")))
	require.NoError(t, s.UpdateServerStatus(ctx, "fs", domain.ServerStatusFailed))

	got, err := s.GetServer(ctx, "fs")
	require.NoError(t, err)
	require.Equal(t, domain.ServerStatusFailed, got.Status)

	err = s.UpdateServerStatus(ctx, "missing", domain.ServerStatusFailed)
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestStore_DeleteServerCascadesToTools(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateServer(ctx, serverFixture("fs")))
	require.NoError(t, s.UpsertTool(ctx, domain.ToolRecord{
		ID:       domain.ToolID("fs", "readFile"),
		ServerID: "fs",
		Name:     "readFile",
	}))

	require.NoError(t, s.DeleteServer(ctx, "fs"))

	tools, err := s.ToolsByServer(ctx, "fs")
	require.NoError(t, err)
	require.Empty(t, tools)

	// Deleting again reports not found.
	err = s.DeleteServer(ctx, "fs")
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestStore_UpsertToolNeverRegressesClassification(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateServer(ctx, serverFixture("fs")))

	id := domain.ToolID("fs", "readFile")
	require.NoError(t, s.UpsertTool(ctx, domain.ToolRecord{
		ID:          id,
		ServerID:    "fs",
		Name:        "readFile",
		Description: "Reads a file",
	}))

	// Classify.
	isRead, isWrite := true, false
	analyzedAt := time.Now().UTC()
	require.NoError(t, s.UpsertTool(ctx, domain.ToolRecord{
		ID:         id,
		ServerID:   "fs",
		Name:       "readFile",
		IsRead:     &isRead,
		IsWrite:    &isWrite,
		AnalyzedAt: &analyzedAt,
	}))

	// Re-discovery with null classification and fresher descriptor data.
	require.NoError(t, s.UpsertTool(ctx, domain.ToolRecord{
		ID:          id,
		ServerID:    "fs",
		Name:        "readFile",
		Description: "Reads a file from disk",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}))

	tools, err := s.ToolsByServer(ctx, "fs")
	require.NoError(t, err)
	require.Len(t, tools, 1)

	got := tools[0]
	// Descriptor fields take the freshest data.
	require.Equal(t, "Reads a file from disk", got.Description)
	require.JSONEq(t, `{"type":"object"}`, string(got.InputSchema))
	// Classification never regresses to null.
	require.NotNil(t, got.IsRead)
	require.NotNil(t, got.IsWrite)
	require.NotNil(t, got.AnalyzedAt)
	require.True(t, *got.IsRead)
	require.False(t, *got.IsWrite)
}

func TestStore_ToolsByServerOnlyReturnsOwnTools(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateServer(ctx, serverFixture("fs")))
	web := serverFixture("web")
	web.ID = "web"
	require.NoError(t, s.CreateServer(ctx, web))

	require.NoError(t, s.UpsertTool(ctx, domain.ToolRecord{
		ID: domain.ToolID("fs", "readFile"), ServerID: "fs", Name: "readFile",
	}))
	require.NoError(t, s.UpsertTool(ctx, domain.ToolRecord{
		ID: domain.ToolID("web", "search"), ServerID: "web", Name: "search",
	}))

	tools, err := s.ToolsByServer(ctx, "fs")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "fs::readFile", tools[0].ID)
}

func TestStore_ListServers(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateServer(ctx, serverFixture("a")))
	b := serverFixture("b")
	b.ServerType = domain.ServerTypeRemote
	b.Config = domain.ServerConfig{URL: "https://mcp.example.com"}
	require.NoError(t, s.CreateServer(ctx, b))

	recs, err := s.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}
