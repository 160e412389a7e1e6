package inference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/steward-ai/stewardd/internal/errors"
)

// DefaultWaitInterval is the poll interval while waiting for a model.
const DefaultWaitInterval = 500 * time.Millisecond

// DefaultWaitTimeout bounds how long a caller will wait for a model to become
// available before failing with ErrModelUnavailable.
const DefaultWaitTimeout = 5 * time.Minute

// Availability tracks which models are known to be installed and usable.
// Models are marked available either by an initial listing of installed models
// or on completion of a pull. Waits are non-busy polls that suspend only the
// calling goroutine, honor context cancellation, and always carry a timeout.
// It is safe for concurrent use by multiple goroutines.
type Availability struct {
	interval time.Duration
	timeout  time.Duration

	mu    sync.RWMutex
	known map[string]struct{}
}

// NewAvailability creates an empty availability map. Non-positive interval or
// timeout select the defaults.
func NewAvailability(interval, timeout time.Duration) *Availability {
	if interval <= 0 {
		interval = DefaultWaitInterval
	}
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &Availability{
		interval: interval,
		timeout:  timeout,
		known:    make(map[string]struct{}),
	}
}

// MarkAvailable records that a model is installed and usable.
func (a *Availability) MarkAvailable(model string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.known[model] = struct{}{}
}

// MarkAll records a set of installed models. Models already known stay known.
func (a *Availability) MarkAll(models []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range models {
		a.known[m] = struct{}{}
	}
}

// Available reports whether the model is known to be usable.
func (a *Availability) Available(model string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.known[model]
	return ok
}

// Wait blocks until the model becomes available, the context is canceled, or
// the configured timeout elapses. It returns errors.ErrModelUnavailable on
// timeout.
func (a *Availability) Wait(ctx context.Context, model string) error {
	if a.Available(model) {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s (waited %s)", errors.ErrModelUnavailable, model, a.timeout)
		case <-ticker.C:
			if a.Available(model) {
				return nil
			}
		}
	}
}
