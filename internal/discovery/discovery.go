// Package discovery lists the tools exposed by installed servers and turns
// them into durable tool record seeds. Local servers are queried over their
// live sandbox client; remote servers over a short-lived streamable HTTP
// session.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/steward-ai/stewardd/internal/contracts"
	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/errors"
)

// DefaultRemoteTimeout bounds the whole connect-initialize-list exchange with
// a remote server.
const DefaultRemoteTimeout = 30 * time.Second

// Discoverer lists tools for installed servers.
// NewDiscoverer should be used to create instances of Discoverer.
type Discoverer struct {
	logger        hclog.Logger
	clients       contracts.MCPClientAccessor
	remoteTimeout time.Duration
	clientName    string
	clientVersion string
}

// NewDiscoverer creates a discoverer that reaches local servers through the
// given client accessor.
func NewDiscoverer(logger hclog.Logger, clients contracts.MCPClientAccessor) *Discoverer {
	return &Discoverer{
		logger:        logger.Named("discovery"),
		clients:       clients,
		remoteTimeout: DefaultRemoteTimeout,
		clientName:    "stewardd",
		clientVersion: "0.1.0",
	}
}

// Discover returns tool record seeds for the server with classification fields
// left nil. Tools whose input schema is not valid JSON Schema are dropped with
// a warning rather than poisoning the catalog.
func (d *Discoverer) Discover(ctx context.Context, rec domain.ServerRecord) ([]domain.ToolRecord, error) {
	var (
		tools []mcp.Tool
		err   error
	)
	if rec.IsRemote() {
		tools, err = d.listRemote(ctx, rec)
	} else {
		tools, err = d.listLocal(ctx, rec.ID)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	seeds := make([]domain.ToolRecord, 0, len(tools))
	for _, t := range tools {
		schema, ok := d.encodeSchema(rec.ID, t)
		if !ok {
			continue
		}
		seeds = append(seeds, domain.ToolRecord{
			ID:          domain.ToolID(rec.ID, t.Name),
			ServerID:    rec.ID,
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
			UpdatedAt:   now,
		})
	}

	d.logger.Debug("Discovered tools", "server", rec.ID, "count", len(seeds))

	return seeds, nil
}

// listLocal lists tools over the server's live sandbox client.
func (d *Discoverer) listLocal(ctx context.Context, serverID string) ([]mcp.Tool, error) {
	c, ok := d.clients.Client(serverID)
	if !ok {
		return nil, fmt.Errorf("%w: no live client for server %q", errors.ErrUpstreamUnavailable, serverID)
	}
	return d.listAll(ctx, c, serverID)
}

// listRemote opens a short-lived streamable HTTP session against the server's
// URL, lists tools and tears the session down again. If the server has OAuth
// tokens the access token is attached as a bearer credential.
func (d *Discoverer) listRemote(ctx context.Context, rec domain.ServerRecord) ([]mcp.Tool, error) {
	if rec.Config.URL == "" {
		return nil, fmt.Errorf("%w: remote server %q has no URL", errors.ErrBadRequest, rec.ID)
	}

	var opts []transport.StreamableHTTPCOption
	if rec.OAuthTokens != nil && rec.OAuthTokens.AccessToken != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + rec.OAuthTokens.AccessToken,
		}))
	}

	c, err := client.NewStreamableHttpClient(rec.Config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create remote client for %q: %v", errors.ErrUpstreamUnavailable, rec.ID, err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, d.remoteTimeout)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("%w: connect to %q: %v", errors.ErrUpstreamUnavailable, rec.ID, err)
	}

	if _, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: d.clientName, Version: d.clientVersion},
		},
	}); err != nil {
		return nil, fmt.Errorf("%w: initialize %q: %v", errors.ErrUpstreamUnavailable, rec.ID, err)
	}

	return d.listAll(ctx, c, rec.ID)
}

// listAll pages through tools/list until the server stops returning a cursor.
func (d *Discoverer) listAll(ctx context.Context, c *client.Client, serverID string) ([]mcp.Tool, error) {
	var (
		tools  []mcp.Tool
		cursor mcp.Cursor
	)
	for {
		req := mcp.ListToolsRequest{}
		req.Params.Cursor = cursor

		res, err := c.ListTools(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: list tools for %q: %v", errors.ErrUpstreamUnavailable, serverID, err)
		}

		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}

	return tools, nil
}

// encodeSchema serializes and validates a tool's input schema. A tool with no
// schema gets a nil RawMessage; a tool with a malformed schema is dropped.
func (d *Discoverer) encodeSchema(serverID string, t mcp.Tool) (json.RawMessage, bool) {
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		d.logger.Warn("Dropping tool with unserializable schema", "server", serverID, "tool", t.Name, "error", err)
		return nil, false
	}
	if string(raw) == "null" {
		return nil, true
	}

	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw)); err != nil {
		d.logger.Warn("Dropping tool with invalid input schema", "server", serverID, "tool", t.Name, "error", err)
		return nil, false
	}

	return raw, true
}
