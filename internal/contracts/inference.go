package contracts

import (
	"context"
)

// PullUpdate is one line of a model pull stream, as reported by the backend.
type PullUpdate struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// InferenceBackend is the local model runner used for tool classification and
// chat completion. Implementations speak the Ollama HTTP API.
type InferenceBackend interface {
	// Generate runs a single-shot completion for the prompt and returns the
	// response text.
	Generate(ctx context.Context, model, prompt string) (string, error)

	// ListModels returns the names of installed models.
	ListModels(ctx context.Context) ([]string, error)

	// Pull downloads a model, invoking update for each line-delimited progress
	// record until the stream ends.
	Pull(ctx context.Context, model string, update func(PullUpdate)) error
}
