package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steward-ai/stewardd/internal/domain"
)

func TestStatusTracker_SetAndStatus(t *testing.T) {
	t.Parallel()

	tracker := NewStatusTracker()

	_, ok := tracker.Status("fs")
	require.False(t, ok)

	tracker.Set(domain.SandboxStatus{
		ServerID:          "fs",
		State:             domain.SandboxStateInitializing,
		StartupPercentage: 10,
	})

	got, ok := tracker.Status("fs")
	require.True(t, ok)
	require.Equal(t, domain.SandboxStateInitializing, got.State)
	require.Equal(t, 10, got.StartupPercentage)

	// Overwrite with a later snapshot.
	tracker.Set(domain.SandboxStatus{
		ServerID:          "fs",
		State:             domain.SandboxStateRunning,
		StartupPercentage: 100,
	})

	got, ok = tracker.Status("fs")
	require.True(t, ok)
	require.Equal(t, domain.SandboxStateRunning, got.State)
	require.Equal(t, 100, got.StartupPercentage)
}

func TestStatusTracker_Summary(t *testing.T) {
	t.Parallel()

	tracker := NewStatusTracker()
	require.Empty(t, tracker.Summary())

	tracker.Set(domain.SandboxStatus{ServerID: "a", State: domain.SandboxStateRunning})
	tracker.Set(domain.SandboxStatus{ServerID: "b", State: domain.SandboxStateError})

	summary := tracker.Summary()
	require.Len(t, summary, 2)

	ids := map[string]domain.SandboxState{}
	for _, s := range summary {
		ids[s.ServerID] = s.State
	}
	require.Equal(t, domain.SandboxStateRunning, ids["a"])
	require.Equal(t, domain.SandboxStateError, ids["b"])
}

func TestStatusTracker_ForgetIsIdempotent(t *testing.T) {
	t.Parallel()

	tracker := NewStatusTracker()
	tracker.Set(domain.SandboxStatus{ServerID: "fs", State: domain.SandboxStateRunning})

	tracker.Forget("fs")
	_, ok := tracker.Status("fs")
	require.False(t, ok)

	require.NotPanics(t, func() { tracker.Forget("fs") })
}

func TestClientManager(t *testing.T) {
	t.Parallel()

	cm := NewClientManager()

	_, ok := cm.Client("fs")
	require.False(t, ok)
	require.Empty(t, cm.List())

	cm.Add("fs", nil)
	_, ok = cm.Client("fs")
	require.True(t, ok)
	require.Equal(t, []string{"fs"}, cm.List())

	cm.Remove("fs")
	_, ok = cm.Client("fs")
	require.False(t, ok)

	require.NotPanics(t, func() { cm.Remove("fs") })
}
