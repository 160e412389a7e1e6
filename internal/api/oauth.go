package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/steward-ai/stewardd/internal/contracts"
	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/lifecycle"
	"github.com/steward-ai/stewardd/internal/oauth"
)

// ExchangeRequest is the incoming generic token exchange request. String
// fields may carry symbolic "process.env.<NAME>" references which are
// resolved before the proxy is contacted.
type ExchangeRequest struct {
	Body struct {
		ServerID      string `doc:"Server the tokens belong to"       json:"serverId"`
		TokenEndpoint string `doc:"Provider token endpoint"           json:"tokenEndpoint"`
		ClientID      string `doc:"OAuth client ID"                   json:"clientId"`
		GrantType     string `doc:"Grant type"                        json:"grantType,omitempty"`
		Code          string `doc:"Authorization code"                json:"code,omitempty"`
		CodeVerifier  string `doc:"PKCE code verifier"                json:"codeVerifier,omitempty"`
		RedirectURI   string `doc:"Redirect URI used in the flow"     json:"redirectUri,omitempty"`
		RefreshToken  string `doc:"Refresh token for refresh grants"  json:"refreshToken,omitempty"`
	}
}

// DiscoverRequest is the incoming discovery-based exchange request.
type DiscoverRequest struct {
	Body struct {
		ServerID      string `doc:"Server the tokens belong to"      json:"serverId"`
		AuthServerURL string `doc:"Authorization server base URL"    json:"authServerUrl"`
		ClientID      string `doc:"OAuth client ID"                  json:"clientId,omitempty"`
		Code          string `doc:"Authorization code"               json:"code,omitempty"`
		CodeVerifier  string `doc:"PKCE code verifier"               json:"codeVerifier,omitempty"`
		RedirectURI   string `doc:"Redirect URI used in the flow"    json:"redirectUri,omitempty"`
		RefreshToken  string `doc:"Refresh token for refresh grants" json:"refreshToken,omitempty"`
	}
}

// RefreshRequest is the incoming token refresh request.
type RefreshRequest struct {
	Body struct {
		ServerID      string `doc:"Server the tokens belong to"            json:"serverId"`
		TokenEndpoint string `doc:"Provider token endpoint, if known"      json:"tokenEndpoint,omitempty"`
		AuthServerURL string `doc:"Authorization server URL for discovery" json:"authServerUrl,omitempty"`
		RefreshToken  string `doc:"Refresh token"                          json:"refreshToken"`
	}
}

// TokensResponse wraps a token set returned by the proxy.
type TokensResponse struct {
	Body domain.TokenSet
}

// CompleteAuthorizationRequest finishes a pending OAuth install with the
// tokens obtained from an exchange.
type CompleteAuthorizationRequest struct {
	ID   string `doc:"Server ID" path:"id"`
	Body struct {
		Tokens domain.TokenSet `doc:"Tokens from a successful exchange" json:"tokens"`
	}
}

// RevokeRequest revokes a server's access token at the provider, via the
// proxy. The revocation endpoint can be supplied explicitly; otherwise it is
// taken from the server's stored authorization server metadata.
type RevokeRequest struct {
	ID   string `doc:"Server ID" path:"id"`
	Body struct {
		RevocationEndpoint string `doc:"Provider revocation endpoint override" json:"revocationEndpoint,omitempty"`
	}
}

// ProxyHealthResponse wraps the proxy health probe result.
type ProxyHealthResponse struct {
	Body struct {
		AllowedDestinations []string `doc:"Destinations the proxy will forward to" json:"allowedDestinations"`
	}
}

// RegisterOAuthRoutes sets up OAuth brokering API endpoint routes.
func RegisterOAuthRoutes(
	routerAPI huma.API,
	broker *oauth.Broker,
	orchestrator *lifecycle.Orchestrator,
	servers contracts.ServerStore,
	apiPathPrefix string,
) {
	oauthAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"OAuth"}

	huma.Register(
		oauthAPI,
		huma.Operation{
			OperationID: "exchangeTokens",
			Method:      http.MethodPost,
			Path:        "/exchange",
			Summary:     "Exchange an authorization code for tokens via the proxy",
			Tags:        tags,
		},
		func(ctx context.Context, input *ExchangeRequest) (*TokensResponse, error) {
			tokens, err := broker.Exchange(ctx, oauth.GenericExchangeRequest{
				ServerID:      input.Body.ServerID,
				TokenEndpoint: resolveString(input.Body.TokenEndpoint),
				ClientID:      resolveString(input.Body.ClientID),
				GrantType:     input.Body.GrantType,
				Code:          input.Body.Code,
				CodeVerifier:  input.Body.CodeVerifier,
				RedirectURI:   resolveString(input.Body.RedirectURI),
				RefreshToken:  input.Body.RefreshToken,
			})
			if err != nil {
				return nil, err
			}
			return &TokensResponse{Body: *tokens}, nil
		},
	)

	huma.Register(
		oauthAPI,
		huma.Operation{
			OperationID: "exchangeTokensWithDiscovery",
			Method:      http.MethodPost,
			Path:        "/discover",
			Summary:     "Exchange tokens via proxy-side OAuth discovery",
			Tags:        tags,
		},
		func(ctx context.Context, input *DiscoverRequest) (*TokensResponse, error) {
			tokens, err := broker.ExchangeWithDiscovery(ctx, oauth.DiscoveryExchangeRequest{
				ServerID:      input.Body.ServerID,
				AuthServerURL: resolveString(input.Body.AuthServerURL),
				ClientID:      resolveString(input.Body.ClientID),
				Code:          input.Body.Code,
				CodeVerifier:  input.Body.CodeVerifier,
				RedirectURI:   resolveString(input.Body.RedirectURI),
				RefreshToken:  input.Body.RefreshToken,
			})
			if err != nil {
				return nil, err
			}
			return &TokensResponse{Body: *tokens}, nil
		},
	)

	huma.Register(
		oauthAPI,
		huma.Operation{
			OperationID: "refreshTokens",
			Method:      http.MethodPost,
			Path:        "/refresh",
			Summary:     "Refresh tokens via the proxy",
			Tags:        tags,
		},
		func(ctx context.Context, input *RefreshRequest) (*TokensResponse, error) {
			tokens, err := broker.Refresh(
				ctx,
				input.Body.ServerID,
				resolveString(input.Body.TokenEndpoint),
				resolveString(input.Body.AuthServerURL),
				input.Body.RefreshToken,
			)
			if err != nil {
				return nil, err
			}
			return &TokensResponse{Body: *tokens}, nil
		},
	)

	huma.Register(
		oauthAPI,
		huma.Operation{
			OperationID: "completeAuthorization",
			Method:      http.MethodPost,
			Path:        "/servers/{id}/complete",
			Summary:     "Complete a pending OAuth install with exchanged tokens",
			Tags:        tags,
		},
		func(ctx context.Context, input *CompleteAuthorizationRequest) (*ServerResponse, error) {
			rec, err := orchestrator.FinishAuthorization(ctx, input.ID, &input.Body.Tokens)
			if err != nil {
				return nil, err
			}
			return &ServerResponse{Body: toAPIServer(rec)}, nil
		},
	)

	huma.Register(
		oauthAPI,
		huma.Operation{
			OperationID: "revokeTokens",
			Method:      http.MethodPost,
			Path:        "/servers/{id}/revoke",
			Summary:     "Best-effort revocation of a server's access token",
			Tags:        tags,
		},
		func(ctx context.Context, input *RevokeRequest) (*struct{}, error) {
			rec, err := servers.GetServer(ctx, input.ID)
			if err != nil {
				return nil, err
			}

			endpoint := resolveString(input.Body.RevocationEndpoint)
			if endpoint == "" && rec.OAuthServerMetadata != nil {
				if v, ok := (*rec.OAuthServerMetadata)["revocation_endpoint"].(string); ok {
					endpoint = v
				}
			}

			token := ""
			if rec.OAuthTokens != nil {
				token = rec.OAuthTokens.AccessToken
			}

			// Revocation never fails the request: the broker logs and swallows
			// provider errors, and a server without tokens is a no-op.
			broker.Revoke(ctx, rec.ID, endpoint, token)
			return &struct{}{}, nil
		},
	)

	huma.Register(
		oauthAPI,
		huma.Operation{
			OperationID: "getProxyHealth",
			Method:      http.MethodGet,
			Path:        "/health",
			Summary:     "Probe the OAuth proxy",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*ProxyHealthResponse, error) {
			destinations, err := broker.Health(ctx)
			if err != nil {
				return nil, err
			}
			resp := &ProxyHealthResponse{}
			resp.Body.AllowedDestinations = destinations
			return resp, nil
		},
	)
}

// resolveString resolves a possible "process.env.<NAME>" reference in a single
// string field. An unset reference resolves to empty, which downstream
// validation treats as absent.
func resolveString(s string) string {
	resolved := oauth.ResolveEnvRefs(s)
	if out, ok := resolved.(string); ok {
		return out
	}
	return ""
}
