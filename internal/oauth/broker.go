// Package oauth brokers token exchange, refresh and revocation through a
// remote proxy. The proxy holds the real client secrets; this process only
// ever sends a sentinel value which the proxy substitutes server-side, so no
// confidential secret is held on the local node.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/errors"
)

// SecretSentinel is sent in place of a client secret. The proxy replaces it
// with the real stored secret before contacting the provider.
const SecretSentinel = "__STEWARDD_PROXY_SECRET__"

const (
	// DefaultTokenTimeout bounds token exchange/refresh/revocation calls.
	DefaultTokenTimeout = 30 * time.Second

	// DefaultProbeTimeout bounds health and capability probes.
	DefaultProbeTimeout = 5 * time.Second
)

// Broker performs OAuth operations through the remote proxy.
// NewBroker should be used to create instances of Broker.
type Broker struct {
	logger      hclog.Logger
	proxyURL    string
	tokenClient *http.Client
	probeClient *http.Client
}

// NewBroker creates a broker for the given proxy base URL.
func NewBroker(logger hclog.Logger, proxyURL string) *Broker {
	return &Broker{
		logger:      logger.Named("oauth"),
		proxyURL:    strings.TrimRight(proxyURL, "/"),
		tokenClient: &http.Client{Timeout: DefaultTokenTimeout},
		probeClient: &http.Client{Timeout: DefaultProbeTimeout},
	}
}

// GenericExchangeRequest is the generic-protocol exchange: the caller supplies
// a concrete token endpoint and the proxy forwards the request there with the
// real secret substituted.
type GenericExchangeRequest struct {
	ServerID      string `json:"server_id"`
	TokenEndpoint string `json:"token_endpoint"`
	ClientID      string `json:"client_id"`
	GrantType     string `json:"grant_type"`
	Code          string `json:"code,omitempty"`
	CodeVerifier  string `json:"code_verifier,omitempty"`
	RedirectURI   string `json:"redirect_uri,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
}

// DiscoveryExchangeRequest is the discovery-based exchange: the caller
// supplies only the authorization server's base URL and the proxy performs
// OAuth metadata discovery and token-endpoint resolution itself.
type DiscoveryExchangeRequest struct {
	ServerID      string `json:"server_id"`
	AuthServerURL string `json:"auth_server_url"`
	ClientID      string `json:"client_id"`
	Code          string `json:"code,omitempty"`
	CodeVerifier  string `json:"code_verifier,omitempty"`
	RedirectURI   string `json:"redirect_uri,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
}

// Exchange performs a generic token exchange through the proxy.
func (b *Broker) Exchange(ctx context.Context, req GenericExchangeRequest) (*domain.TokenSet, error) {
	if req.TokenEndpoint == "" {
		return nil, fmt.Errorf("%w: token endpoint is required", errors.ErrBadRequest)
	}
	if req.GrantType == "" {
		req.GrantType = "authorization_code"
	}

	payload := map[string]any{
		"server_id":      req.ServerID,
		"token_endpoint": req.TokenEndpoint,
		"client_id":      req.ClientID,
		"client_secret":  SecretSentinel,
		"grant_type":     req.GrantType,
	}
	addIfSet(payload, "code", req.Code)
	addIfSet(payload, "code_verifier", req.CodeVerifier)
	addIfSet(payload, "redirect_uri", req.RedirectURI)
	addIfSet(payload, "refresh_token", req.RefreshToken)

	return b.postTokens(ctx, "/api/oauth/exchange", payload)
}

// ExchangeWithDiscovery performs a discovery-based exchange through the proxy.
func (b *Broker) ExchangeWithDiscovery(ctx context.Context, req DiscoveryExchangeRequest) (*domain.TokenSet, error) {
	if req.AuthServerURL == "" {
		return nil, fmt.Errorf("%w: authorization server URL is required", errors.ErrBadRequest)
	}

	payload := map[string]any{
		"server_id":       req.ServerID,
		"auth_server_url": req.AuthServerURL,
		"client_id":       req.ClientID,
		"client_secret":   SecretSentinel,
	}
	addIfSet(payload, "code", req.Code)
	addIfSet(payload, "code_verifier", req.CodeVerifier)
	addIfSet(payload, "redirect_uri", req.RedirectURI)
	addIfSet(payload, "refresh_token", req.RefreshToken)

	return b.postTokens(ctx, "/api/oauth/discover", payload)
}

// Refresh exchanges a refresh token for fresh tokens through the proxy.
// Either a concrete token endpoint or an authorization server base URL must be
// supplied; the latter routes through discovery.
func (b *Broker) Refresh(ctx context.Context, serverID, tokenEndpoint, authServerURL, refreshToken string) (*domain.TokenSet, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", errors.ErrBadRequest)
	}

	if tokenEndpoint != "" {
		return b.Exchange(ctx, GenericExchangeRequest{
			ServerID:      serverID,
			TokenEndpoint: tokenEndpoint,
			GrantType:     "refresh_token",
			RefreshToken:  refreshToken,
		})
	}

	return b.ExchangeWithDiscovery(ctx, DiscoveryExchangeRequest{
		ServerID:      serverID,
		AuthServerURL: authServerURL,
		RefreshToken:  refreshToken,
	})
}

// Revoke revokes a token, best-effort. A missing endpoint is a silent no-op
// and a failed call is logged and swallowed: revocation failure never blocks
// correct operation since token expiry still applies.
func (b *Broker) Revoke(ctx context.Context, serverID, endpoint, token string) {
	if endpoint == "" || token == "" {
		return
	}

	payload := map[string]any{
		"server_id":           serverID,
		"revocation_endpoint": endpoint,
		"token":               token,
		"client_secret":       SecretSentinel,
	}

	if _, err := b.post(ctx, b.tokenClient, "/api/oauth/revoke", payload); err != nil {
		b.logger.Warn("Token revocation failed", "server", serverID, "error", err)
	}
}

// Health probes the proxy and returns the destinations it will forward to.
func (b *Broker) Health(ctx context.Context) ([]string, error) {
	u, err := url.JoinPath(b.proxyURL, "/api/oauth/health")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.probeClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: proxy health returned %d", errors.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body struct {
		AllowedDestinations []string `json:"allowed_destinations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode proxy health: %w", err)
	}

	return body.AllowedDestinations, nil
}

func (b *Broker) postTokens(ctx context.Context, path string, payload map[string]any) (*domain.TokenSet, error) {
	body, err := b.post(ctx, b.tokenClient, path, payload)
	if err != nil {
		return nil, err
	}

	tokens := &domain.TokenSet{}
	if err := json.Unmarshal(body, tokens); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: proxy returned no access token", errors.ErrUpstreamUnavailable)
	}

	return tokens, nil
}

func (b *Broker) post(ctx context.Context, client *http.Client, path string, payload map[string]any) ([]byte, error) {
	u, err := url.JoinPath(b.proxyURL, path)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read proxy response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: proxy returned %d: %s", errors.ErrUpstreamUnavailable, resp.StatusCode, respBody)
	}

	return respBody, nil
}

func addIfSet(payload map[string]any, key, value string) {
	if value != "" {
		payload[key] = value
	}
}
