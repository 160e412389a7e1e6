// Package errors defines domain-level errors used throughout the application.
// These errors represent business logic failures and are mapped to appropriate HTTP status codes at the API boundary.
//
// NOTE: Important for developers
// When adding a new error here, you MUST consider how it should be handled when returned from API endpoints.
//
// Unmapped errors will default to HTTP 500 Internal Server Error.
//
// Don't forget to:
// 1. Add your error to mapError (internal/daemon/api_server.go)
// 2. Add a test case to TestMapError (internal/daemon/api_server_test.go)
package errors

import (
	"errors"
)

var (
	// ErrBadRequest indicates that the client provided invalid input or made a malformed request.
	// This typically results from validation failures on an install spec.
	// Recommended to map to HTTP 400 Bad Request.
	ErrBadRequest = errors.New("bad request")

	// ErrServerConflict indicates an attempt to install a server whose ID already exists.
	// The first installation's record is unaffected.
	// Recommended to map to HTTP 409 Conflict.
	ErrServerConflict = errors.New("server already exists")

	// ErrServerNotFound indicates that the requested server does not exist in the registry.
	// Recommended to map to HTTP 404 Not Found.
	ErrServerNotFound = errors.New("server not found")

	// ErrToolNotFound indicates that the requested tool is not present in the aggregated view.
	// Recommended to map to HTTP 404 Not Found.
	ErrToolNotFound = errors.New("tool not found")

	// ErrUpstreamUnavailable indicates that an external collaborator (OAuth proxy or
	// inference backend) could not be reached within its timeout. Components with a
	// fallback (heuristic classification) use it locally; otherwise it is surfaced.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrSandboxStartFailed indicates the sandbox runtime could not start a local server.
	// The registry record is NOT rolled back; the server is left with status "failed"
	// so the user can retry without losing configuration.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrSandboxStartFailed = errors.New("sandbox start failed")

	// ErrModelUnavailable indicates the named inference model did not become available
	// within the configured wait bound.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrModelUnavailable = errors.New("model unavailable")
)
