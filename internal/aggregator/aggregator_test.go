package aggregator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregator_SetServerTools(t *testing.T) {
	t.Parallel()

	a := New()
	a.SetServerTools("fs", []Entry{
		{Name: "readFile", Description: "Reads a file"},
		{Name: "writeFile", Description: "Writes a file"},
	})

	all := a.AllTools()
	require.Len(t, all, 2)
	require.Contains(t, all, "fs::readFile")
	require.Contains(t, all, "fs::writeFile")
	require.Equal(t, "fs", all["fs::readFile"].ServerID)

	// Replacing a server's set drops its old entries.
	a.SetServerTools("fs", []Entry{{Name: "stat"}})
	all = a.AllTools()
	require.Len(t, all, 1)
	require.Contains(t, all, "fs::stat")
}

func TestAggregator_NameCollisionsAcrossServers(t *testing.T) {
	t.Parallel()

	a := New()
	a.SetServerTools("fs", []Entry{{Name: "search"}})
	a.SetServerTools("web", []Entry{{Name: "search"}})

	all := a.AllTools()
	require.Len(t, all, 2)
	require.Equal(t, "fs", all["fs::search"].ServerID)
	require.Equal(t, "web", all["web::search"].ServerID)
}

func TestAggregator_ToolsByID(t *testing.T) {
	t.Parallel()

	a := New()
	a.SetServerTools("fs", []Entry{{Name: "readFile"}, {Name: "writeFile"}})

	tests := []struct {
		name    string
		ids     []string
		wantIDs []string
	}{
		{
			name:    "existing subset",
			ids:     []string{"fs::readFile"},
			wantIDs: []string{"fs::readFile"},
		},
		{
			name:    "unknown ids filtered out",
			ids:     []string{"fs::readFile", "fs::nope", "other::tool"},
			wantIDs: []string{"fs::readFile"},
		},
		{
			name:    "empty request",
			ids:     nil,
			wantIDs: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := a.ToolsByID(tc.ids)
			require.Len(t, got, len(tc.wantIDs))
			for _, id := range tc.wantIDs {
				require.Contains(t, got, id)
			}
			// Never returns an entry outside the requested set.
			for id := range got {
				require.Contains(t, tc.ids, id)
			}
		})
	}
}

func TestAggregator_RemoveServer(t *testing.T) {
	t.Parallel()

	a := New()
	a.SetServerTools("fs", []Entry{{Name: "readFile"}})
	a.SetServerTools("web", []Entry{{Name: "search"}})

	a.RemoveServer("fs")
	require.Equal(t, 1, a.Count())
	require.NotContains(t, a.AllTools(), "fs::readFile")

	// Removing an unknown server is a no-op.
	a.RemoveServer("fs")
	require.Equal(t, 1, a.Count())
}

func TestForModel(t *testing.T) {
	t.Parallel()

	longName := strings.Repeat("x", 100)

	entries := []Entry{
		{ID: "fs::readFile", Name: "readFile", Description: "Reads a file"},
		{ID: "fs::" + longName, Name: longName},
		{ID: "fs::broken", Name: ""},
	}

	got := ForModel(entries)
	require.Len(t, got, 2)

	require.Equal(t, "readFile", got[0].Name)

	// Long names are truncated, canonical IDs are not.
	require.Len(t, got[1].Name, MaxModelToolNameLength)
	require.Equal(t, "fs::"+longName, got[1].ID)
}

func TestForModel_TruncationCountsRunes(t *testing.T) {
	t.Parallel()

	name := strings.Repeat("ü", MaxModelToolNameLength+10)
	got := ForModel([]Entry{{ID: "s::t", Name: name}})

	require.Len(t, got, 1)
	require.Equal(t, strings.Repeat("ü", MaxModelToolNameLength), got[0].Name)
}
