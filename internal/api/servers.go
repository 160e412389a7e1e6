// Package api defines the HTTP surface of the daemon: server lifecycle,
// aggregated tools, sandbox status, OAuth brokering, model management and the
// event stream.
package api

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/steward-ai/stewardd/internal/contracts"
	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/lifecycle"
)

// ServerConfig mirrors domain.ServerConfig for API requests and responses.
type ServerConfig struct {
	Command string            `doc:"Executable for local servers"    json:"command,omitempty"`
	Args    []string          `doc:"Arguments for local servers"     json:"args,omitempty"`
	Env     map[string]string `doc:"Environment for local servers"   json:"env,omitempty"`
	URL     string            `doc:"Endpoint URL for remote servers" json:"url,omitempty"`
}

// Server is the API-safe view of an installed server. OAuth material is
// reduced to a presence flag so tokens never leave the daemon.
type Server struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Config      ServerConfig `json:"config"`
	Status      string       `json:"status"`
	ServerType  string       `json:"serverType"`
	HasOAuth    bool         `json:"hasOAuth"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// InstallServerRequest is the incoming request to install a server.
type InstallServerRequest struct {
	Body struct {
		ID               string            `doc:"Optional catalog ID; generated when absent" json:"id,omitempty"`
		DisplayName      string            `doc:"Human-readable server name"                 json:"displayName"`
		Config           ServerConfig      `doc:"Launch configuration"                       json:"config"`
		UserConfigValues map[string]string `doc:"User-supplied config substitutions"         json:"userConfigValues,omitempty"`
		OAuthTokens      *domain.TokenSet  `doc:"Tokens obtained before install"             json:"oauthTokens,omitempty"`
		Status           string            `doc:"Initial status override"                    json:"status,omitempty"`
		ServerType       string            `doc:"local or remote"                            json:"serverType,omitempty"`
	}
}

// InstallServerResponse wraps the installed record.
type InstallServerResponse struct {
	Status int
	Body   Server
}

// ServersResponse wraps the installed server list.
type ServersResponse struct {
	Body struct {
		Servers []Server `doc:"All installed servers" json:"servers"`
	}
}

// ServerRequest addresses a single server by ID.
type ServerRequest struct {
	ID string `doc:"Server ID" example:"fs" path:"id"`
}

// ServerResponse wraps one server.
type ServerResponse struct {
	Body Server
}

// RegisterServerRoutes sets up server lifecycle API endpoint routes.
func RegisterServerRoutes(
	routerAPI huma.API,
	orchestrator *lifecycle.Orchestrator,
	servers contracts.ServerStore,
	apiPathPrefix string,
) {
	serversAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Servers"}

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID:   "installServer",
			Method:        http.MethodPost,
			Summary:       "Install a server",
			DefaultStatus: http.StatusCreated,
			Tags:          tags,
		},
		func(ctx context.Context, input *InstallServerRequest) (*InstallServerResponse, error) {
			return handleInstallServer(ctx, orchestrator, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "listServers",
			Method:      http.MethodGet,
			Summary:     "List all installed servers",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*ServersResponse, error) {
			return handleListServers(ctx, servers)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "getServer",
			Method:      http.MethodGet,
			Path:        "/{id}",
			Summary:     "Get an installed server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*ServerResponse, error) {
			return handleGetServer(ctx, servers, input.ID)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "uninstallServer",
			Method:      http.MethodDelete,
			Path:        "/{id}",
			Summary:     "Uninstall a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*struct{}, error) {
			if err := orchestrator.Uninstall(ctx, input.ID); err != nil {
				return nil, err
			}
			return &struct{}{}, nil
		},
	)
}

func handleInstallServer(ctx context.Context, orchestrator *lifecycle.Orchestrator, input *InstallServerRequest) (*InstallServerResponse, error) {
	rec, err := orchestrator.Install(ctx, lifecycle.InstallSpec{
		ID:          input.Body.ID,
		DisplayName: input.Body.DisplayName,
		Config: domain.ServerConfig{
			Command: input.Body.Config.Command,
			Args:    input.Body.Config.Args,
			Env:     input.Body.Config.Env,
			URL:     input.Body.Config.URL,
		},
		UserConfigValues: input.Body.UserConfigValues,
		OAuthTokens:      input.Body.OAuthTokens,
		Status:           domain.ServerStatus(input.Body.Status),
		ServerType:       domain.ServerType(input.Body.ServerType),
	})
	if err != nil {
		return nil, err
	}

	return &InstallServerResponse{
		Status: http.StatusCreated,
		Body:   toAPIServer(rec),
	}, nil
}

func handleListServers(ctx context.Context, servers contracts.ServerStore) (*ServersResponse, error) {
	recs, err := servers.ListServers(ctx)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(recs, func(a, b domain.ServerRecord) int {
		return strings.Compare(a.ID, b.ID)
	})

	apiServers := make([]Server, 0, len(recs))
	for _, rec := range recs {
		apiServers = append(apiServers, toAPIServer(rec))
	}

	resp := &ServersResponse{}
	resp.Body.Servers = apiServers

	return resp, nil
}

func handleGetServer(ctx context.Context, servers contracts.ServerStore, id string) (*ServerResponse, error) {
	rec, err := servers.GetServer(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ServerResponse{Body: toAPIServer(rec)}, nil
}

func toAPIServer(rec domain.ServerRecord) Server {
	return Server{
		ID:          rec.ID,
		DisplayName: rec.DisplayName,
		Config: ServerConfig{
			Command: rec.Config.Command,
			Args:    rec.Config.Args,
			Env:     rec.Config.Env,
			URL:     rec.Config.URL,
		},
		Status:     string(rec.Status),
		ServerType: string(rec.ServerType),
		HasOAuth:   rec.OAuthTokens != nil,
		CreatedAt:  rec.CreatedAt,
	}
}
