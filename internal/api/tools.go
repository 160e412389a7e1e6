package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/steward-ai/stewardd/internal/aggregator"
	"github.com/steward-ai/stewardd/internal/contracts"
	"github.com/steward-ai/stewardd/internal/domain"
)

// Tool is the API view of one aggregated tool.
type Tool struct {
	ID          string          `json:"id"`
	ServerID    string          `json:"serverId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ClassifiedTool is the API view of a persisted tool record including its
// read/write classification.
type ClassifiedTool struct {
	Tool
	IsRead     *bool      `json:"isRead"`
	IsWrite    *bool      `json:"isWrite"`
	AnalyzedAt *time.Time `json:"analyzedAt"`
}

// ToolsRequest optionally filters the aggregated view to specific IDs.
type ToolsRequest struct {
	IDs []string `doc:"Restrict to these tool IDs" query:"ids" required:"false"`
}

// ToolsResponse wraps the aggregated tool list.
type ToolsResponse struct {
	Body struct {
		Tools []Tool `doc:"Aggregated tools across all servers" json:"tools"`
	}
}

// ModelToolsResponse wraps the model-facing projection of the catalog.
type ModelToolsResponse struct {
	Body struct {
		Tools []aggregator.ModelTool `doc:"Tools projected for the model API" json:"tools"`
	}
}

// ServerToolsRequest addresses the persisted tools of one server.
type ServerToolsRequest struct {
	ID string `doc:"Server ID" example:"fs" path:"id"`
}

// ServerToolsResponse wraps a server's persisted, classified tools.
type ServerToolsResponse struct {
	Body struct {
		Tools []ClassifiedTool `doc:"Persisted tools with classification" json:"tools"`
	}
}

// RegisterToolRoutes sets up tool catalog API endpoint routes.
func RegisterToolRoutes(
	routerAPI huma.API,
	catalog *aggregator.Aggregator,
	tools contracts.ToolStore,
	apiPathPrefix string,
) {
	toolsAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Tools"}

	huma.Register(
		toolsAPI,
		huma.Operation{
			OperationID: "listTools",
			Method:      http.MethodGet,
			Summary:     "List aggregated tools",
			Tags:        tags,
		},
		func(ctx context.Context, input *ToolsRequest) (*ToolsResponse, error) {
			return handleListTools(catalog, input.IDs)
		},
	)

	huma.Register(
		toolsAPI,
		huma.Operation{
			OperationID: "listModelTools",
			Method:      http.MethodGet,
			Path:        "/model",
			Summary:     "List tools projected for the model API",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*ModelToolsResponse, error) {
			return handleListModelTools(catalog)
		},
	)

	huma.Register(
		toolsAPI,
		huma.Operation{
			OperationID: "listServerTools",
			Method:      http.MethodGet,
			Path:        "/servers/{id}",
			Summary:     "List a server's persisted tools with classification",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerToolsRequest) (*ServerToolsResponse, error) {
			return handleListServerTools(ctx, tools, input.ID)
		},
	)
}

func handleListTools(catalog *aggregator.Aggregator, ids []string) (*ToolsResponse, error) {
	var entries map[string]aggregator.Entry
	if len(ids) > 0 {
		entries = catalog.ToolsByID(ids)
	} else {
		entries = catalog.AllTools()
	}

	apiTools := make([]Tool, 0, len(entries))
	for _, e := range entries {
		apiTools = append(apiTools, Tool{
			ID:          e.ID,
			ServerID:    e.ServerID,
			Name:        e.Name,
			Description: e.Description,
			InputSchema: e.InputSchema,
		})
	}
	sortToolsByID(apiTools)

	resp := &ToolsResponse{}
	resp.Body.Tools = apiTools

	return resp, nil
}

func handleListModelTools(catalog *aggregator.Aggregator) (*ModelToolsResponse, error) {
	all := catalog.AllTools()
	entries := make([]aggregator.Entry, 0, len(all))
	for _, e := range all {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b aggregator.Entry) int {
		return strings.Compare(a.ID, b.ID)
	})

	resp := &ModelToolsResponse{}
	resp.Body.Tools = aggregator.ForModel(entries)

	return resp, nil
}

func handleListServerTools(ctx context.Context, tools contracts.ToolStore, serverID string) (*ServerToolsResponse, error) {
	recs, err := tools.ToolsByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	apiTools := make([]ClassifiedTool, 0, len(recs))
	for _, rec := range recs {
		apiTools = append(apiTools, toAPIClassifiedTool(rec))
	}
	slices.SortFunc(apiTools, func(a, b ClassifiedTool) int {
		return strings.Compare(a.ID, b.ID)
	})

	resp := &ServerToolsResponse{}
	resp.Body.Tools = apiTools

	return resp, nil
}

func toAPIClassifiedTool(rec domain.ToolRecord) ClassifiedTool {
	return ClassifiedTool{
		Tool: Tool{
			ID:          rec.ID,
			ServerID:    rec.ServerID,
			Name:        rec.Name,
			Description: rec.Description,
			InputSchema: rec.InputSchema,
		},
		IsRead:     rec.IsRead,
		IsWrite:    rec.IsWrite,
		AnalyzedAt: rec.AnalyzedAt,
	}
}

func sortToolsByID(tools []Tool) {
	slices.SortFunc(tools, func(a, b Tool) int {
		return strings.Compare(a.ID, b.ID)
	})
}
