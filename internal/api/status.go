package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/steward-ai/stewardd/internal/contracts"
	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/errors"
)

// SandboxStatus is the API view of one sandbox's runtime state.
type SandboxStatus struct {
	ServerID          string `json:"serverId"`
	State             string `json:"state"`
	StartupPercentage int    `json:"startupPercentage"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}

// StatusSummaryResponse wraps the aggregated sandbox summary.
type StatusSummaryResponse struct {
	Body struct {
		Servers []SandboxStatus `doc:"Runtime status of every tracked sandbox" json:"servers"`
	}
}

// StatusRequest addresses one server's sandbox status.
type StatusRequest struct {
	ID string `doc:"Server ID" example:"fs" path:"id"`
}

// StatusResponse wraps one sandbox status.
type StatusResponse struct {
	Body SandboxStatus
}

// RegisterStatusRoutes sets up sandbox status API endpoint routes.
func RegisterStatusRoutes(routerAPI huma.API, monitor contracts.SandboxMonitor, apiPathPrefix string) {
	statusAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Status"}

	huma.Register(
		statusAPI,
		huma.Operation{
			OperationID: "listSandboxStatuses",
			Method:      http.MethodGet,
			Summary:     "List the runtime status of all sandboxes",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*StatusSummaryResponse, error) {
			return handleStatusSummary(monitor)
		},
	)

	huma.Register(
		statusAPI,
		huma.Operation{
			OperationID: "getSandboxStatus",
			Method:      http.MethodGet,
			Path:        "/{id}",
			Summary:     "Get the runtime status of one sandbox",
			Tags:        tags,
		},
		func(ctx context.Context, input *StatusRequest) (*StatusResponse, error) {
			return handleStatus(monitor, input.ID)
		},
	)
}

func handleStatusSummary(monitor contracts.SandboxMonitor) (*StatusSummaryResponse, error) {
	statuses := monitor.Summary()

	slices.SortFunc(statuses, func(a, b domain.SandboxStatus) int {
		return strings.Compare(a.ServerID, b.ServerID)
	})

	apiStatuses := make([]SandboxStatus, 0, len(statuses))
	for _, s := range statuses {
		apiStatuses = append(apiStatuses, toAPIStatus(s))
	}

	resp := &StatusSummaryResponse{}
	resp.Body.Servers = apiStatuses

	return resp, nil
}

func handleStatus(monitor contracts.SandboxMonitor, id string) (*StatusResponse, error) {
	s, ok := monitor.Status(id)
	if !ok {
		return nil, fmt.Errorf("%w: no sandbox for server %q", errors.ErrServerNotFound, id)
	}

	return &StatusResponse{Body: toAPIStatus(s)}, nil
}

func toAPIStatus(s domain.SandboxStatus) SandboxStatus {
	return SandboxStatus{
		ServerID:          s.ServerID,
		State:             string(s.State),
		StartupPercentage: s.StartupPercentage,
		Message:           s.Message,
		Error:             s.Error,
	}
}
