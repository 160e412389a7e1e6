package inference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steward-ai/stewardd/internal/errors"
)

func TestAvailability_MarkAndCheck(t *testing.T) {
	t.Parallel()

	a := NewAvailability(0, 0)
	require.False(t, a.Available("m1"))

	a.MarkAvailable("m1")
	require.True(t, a.Available("m1"))

	a.MarkAll([]string{"m2", "m3"})
	require.True(t, a.Available("m1"))
	require.True(t, a.Available("m2"))
	require.True(t, a.Available("m3"))
}

func TestAvailability_WaitReturnsImmediatelyWhenAvailable(t *testing.T) {
	t.Parallel()

	a := NewAvailability(time.Hour, time.Hour)
	a.MarkAvailable("m")

	// Must not touch the ticker path at all.
	require.NoError(t, a.Wait(context.Background(), "m"))
}

func TestAvailability_WaitTimesOut(t *testing.T) {
	t.Parallel()

	a := NewAvailability(time.Millisecond, 20*time.Millisecond)

	err := a.Wait(context.Background(), "missing")
	require.ErrorIs(t, err, errors.ErrModelUnavailable)
}

func TestAvailability_WaitHonorsCancellation(t *testing.T) {
	t.Parallel()

	a := NewAvailability(time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := a.Wait(ctx, "missing")
	require.ErrorIs(t, err, context.Canceled)
}

func TestAvailability_WaitSeesLateArrival(t *testing.T) {
	t.Parallel()

	a := NewAvailability(time.Millisecond, time.Second)

	go func() {
		time.Sleep(10 * time.Millisecond)
		a.MarkAvailable("late")
	}()

	require.NoError(t, a.Wait(context.Background(), "late"))
}
