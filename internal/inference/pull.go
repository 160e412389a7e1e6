package inference

import (
	"context"

	"github.com/steward-ai/stewardd/internal/contracts"
)

const (
	// PullStatusDownloading covers layer download progress.
	PullStatusDownloading = "downloading"

	// PullStatusVerifying covers digest verification and manifest writing.
	PullStatusVerifying = "verifying"

	// PullStatusCompleted is the terminal success state.
	PullStatusCompleted = "completed"

	// PullStatusError is the terminal failure state.
	PullStatusError = "error"
)

// PullProgress is a normalized model download update.
type PullProgress struct {
	Model    string
	Status   string
	Progress int // 0-100
}

// PullNotifier receives normalized pull progress.
type PullNotifier func(PullProgress)

// normalizePullStatus maps raw backend statuses onto the closed status set.
func normalizePullStatus(raw string) string {
	switch raw {
	case "success":
		return PullStatusCompleted
	case "verifying sha256 digest", "writing manifest", "removing any unused layers":
		return PullStatusVerifying
	default:
		return PullStatusDownloading
	}
}

// PullModel downloads a model through the backend, translating its raw
// line-delimited updates into normalized progress and suppressing redundant
// high-frequency events: a notification fires only when the status changes,
// progress increases by at least one integer percentage point, or a terminal
// state is reached. On success the model is marked available.
func PullModel(
	ctx context.Context,
	backend contracts.InferenceBackend,
	availability *Availability,
	model string,
	notify PullNotifier,
) error {
	lastStatus := ""
	lastProgress := -1

	emit := func(p PullProgress) {
		terminal := p.Status == PullStatusCompleted || p.Status == PullStatusError
		if !terminal && p.Status == lastStatus && p.Progress <= lastProgress {
			return
		}
		lastStatus = p.Status
		if p.Progress > lastProgress {
			lastProgress = p.Progress
		}
		if notify != nil {
			notify(p)
		}
	}

	err := backend.Pull(ctx, model, func(u contracts.PullUpdate) {
		status := normalizePullStatus(u.Status)
		progress := lastProgress
		if progress < 0 {
			progress = 0
		}
		if u.Total > 0 {
			progress = int(u.Completed * 100 / u.Total)
		}
		if status == PullStatusCompleted {
			progress = 100
		}
		emit(PullProgress{Model: model, Status: status, Progress: progress})
	})
	if err != nil {
		emit(PullProgress{Model: model, Status: PullStatusError, Progress: lastProgress})
		return err
	}

	// Some streams end without an explicit success line.
	if lastStatus != PullStatusCompleted {
		emit(PullProgress{Model: model, Status: PullStatusCompleted, Progress: 100})
	}

	if availability != nil {
		availability.MarkAvailable(model)
	}

	return nil
}
