// Package domain defines the core records managed by the daemon: installed
// servers, their discovered tools, sandbox state and analysis progress.
package domain

import (
	"time"
)

const (
	// ServerStatusInstalling marks a record whose installation is still in flight.
	ServerStatusInstalling ServerStatus = "installing"

	// ServerStatusOAuthPending marks a record persisted mid OAuth flow, awaiting tokens.
	ServerStatusOAuthPending ServerStatus = "oauth_pending"

	// ServerStatusInstalled marks a fully installed server.
	ServerStatusInstalled ServerStatus = "installed"

	// ServerStatusFailed marks a server whose sandbox crashed or persistently failed
	// to start. The status does not auto-heal; only uninstall followed by a fresh
	// install clears it.
	ServerStatusFailed ServerStatus = "failed"
)

const (
	// ServerTypeLocal is a sandboxed child-process server.
	ServerTypeLocal ServerType = "local"

	// ServerTypeRemote is a remote HTTP server. Remote servers never have a sandbox.
	ServerTypeRemote ServerType = "remote"
)

// ServerStatus represents the lifecycle state of an installed server.
type ServerStatus string

// ServerType distinguishes local sandboxed servers from remote HTTP servers.
type ServerType string

// Valid reports whether the status is one of the known lifecycle states.
func (s ServerStatus) Valid() bool {
	switch s {
	case ServerStatusInstalling, ServerStatusOAuthPending, ServerStatusInstalled, ServerStatusFailed:
		return true
	default:
		return false
	}
}

// ServerConfig holds the launch configuration for a server.
// Local servers use Command/Args/Env; remote servers use URL.
type ServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// ServerRecord is the durable record for an installed MCP server.
type ServerRecord struct {
	// ID is globally unique: a catalog name, or a generated UUID for custom servers.
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Config      ServerConfig `json:"config"`

	// UserConfigValues holds user-supplied substitution values for the server's
	// configuration template. They always win over values derived elsewhere.
	UserConfigValues map[string]string `json:"userConfigValues,omitempty"`

	// OAuth material is provider-shaped and nullable; unknown provider fields
	// are preserved in each record's Extra map.
	OAuthTokens           *TokenSet      `json:"oauthTokens,omitempty"`
	OAuthClientInfo       *OAuthDocument `json:"oauthClientInfo,omitempty"`
	OAuthServerMetadata   *OAuthDocument `json:"oauthServerMetadata,omitempty"`
	OAuthResourceMetadata *OAuthDocument `json:"oauthResourceMetadata,omitempty"`

	Status     ServerStatus `json:"status"`
	ServerType ServerType   `json:"serverType"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// IsRemote reports whether the server is a remote HTTP server.
func (r ServerRecord) IsRemote() bool {
	return r.ServerType == ServerTypeRemote
}
