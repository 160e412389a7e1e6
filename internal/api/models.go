package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/steward-ai/stewardd/internal/bus"
	"github.com/steward-ai/stewardd/internal/contracts"
	"github.com/steward-ai/stewardd/internal/inference"
)

// ModelsResponse wraps the installed model list.
type ModelsResponse struct {
	Body struct {
		Models []string `doc:"Models installed on the inference backend" json:"models"`
	}
}

// PullModelRequest asks the backend to download a model.
type PullModelRequest struct {
	Body struct {
		Model string `doc:"Model name to download" example:"qwen2.5:3b" json:"model"`
	}
}

// PullModelResponse acknowledges that a pull was started.
type PullModelResponse struct {
	Status int
	Body   struct {
		Model string `doc:"Model being pulled" json:"model"`
	}
}

// RegisterModelRoutes sets up inference model API endpoint routes. Pulls run
// in the background and report through the event bus.
func RegisterModelRoutes(
	routerAPI huma.API,
	logger hclog.Logger,
	backend contracts.InferenceBackend,
	availability *inference.Availability,
	events *bus.Bus,
	apiPathPrefix string,
) {
	modelsAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Models"}
	modelsLogger := logger.Named("api").Named("models")

	huma.Register(
		modelsAPI,
		huma.Operation{
			OperationID: "listModels",
			Method:      http.MethodGet,
			Summary:     "List installed models",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*ModelsResponse, error) {
			return handleListModels(ctx, backend)
		},
	)

	huma.Register(
		modelsAPI,
		huma.Operation{
			OperationID:   "pullModel",
			Method:        http.MethodPost,
			Path:          "/pull",
			Summary:       "Download a model in the background",
			DefaultStatus: http.StatusAccepted,
			Tags:          tags,
		},
		func(ctx context.Context, input *PullModelRequest) (*PullModelResponse, error) {
			return handlePullModel(modelsLogger, backend, availability, events, input.Body.Model)
		},
	)
}

func handleListModels(ctx context.Context, backend contracts.InferenceBackend) (*ModelsResponse, error) {
	models, err := backend.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	slices.Sort(models)

	resp := &ModelsResponse{}
	resp.Body.Models = models

	return resp, nil
}

func handlePullModel(
	logger hclog.Logger,
	backend contracts.InferenceBackend,
	availability *inference.Availability,
	events *bus.Bus,
	model string,
) (*PullModelResponse, error) {
	// Fire-and-forget: progress and failure are observable on the bus, and the
	// request context must not cancel the download.
	go func() {
		err := inference.PullModel(context.Background(), backend, availability, model, func(p inference.PullProgress) {
			if perr := events.Publish(bus.ModelPullEvent(p.Model, p.Status, p.Progress)); perr != nil {
				logger.Error("Failed to publish pull progress", "model", p.Model, "error", perr)
			}
		})
		if err != nil {
			logger.Error("Model pull failed", "model", model, "error", err)
		}
	}()

	resp := &PullModelResponse{Status: http.StatusAccepted}
	resp.Body.Model = model

	return resp, nil
}
