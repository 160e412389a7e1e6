package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-hclog"

	"github.com/steward-ai/stewardd/internal/api"
	"github.com/steward-ai/stewardd/internal/cmd"
	"github.com/steward-ai/stewardd/internal/errors"
)

// APIServer manages the HTTP API for the daemon.
// NewAPIServer should be used to create instances of APIServer.
type APIServer struct {
	logger          hclog.Logger
	deps            APIDependencies
	cors            CORSConfig
	shutdownTimeout time.Duration
}

// NewAPIServer creates a new API server with the provided dependencies and options.
// Applies default options first, then user-provided options to ensure all fields have valid values.
func NewAPIServer(deps APIDependencies, opt ...APIOption) (*APIServer, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies for API server: %w", err)
	}

	apiOpts, err := NewAPIOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid API options: %w", err)
	}

	return &APIServer{
		logger:          deps.Logger.Named("api"),
		deps:            deps,
		cors:            apiOpts.CORS,
		shutdownTimeout: apiOpts.ShutdownTimeout,
	}, nil
}

// Start starts the API server and blocks until the context is canceled or an error occurs.
func (a *APIServer) Start(ctx context.Context) error {
	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)

	if a.cors.Enabled {
		a.applyCORS(mux)
	}

	config := huma.DefaultConfig("stewardd docs", cmd.Version())
	router := humachi.New(mux, config)

	huma.NewErrorWithContext = errorHandler(a.logger)

	apiPathPrefix, err := url.JoinPath("/api", "v1")
	if err != nil {
		return err
	}

	v1 := huma.NewGroup(router, apiPathPrefix)
	api.RegisterServerRoutes(v1, a.deps.Orchestrator, a.deps.Servers, "/servers")
	api.RegisterToolRoutes(v1, a.deps.Catalog, a.deps.Tools, "/tools")
	api.RegisterStatusRoutes(v1, a.deps.Monitor, "/status")
	api.RegisterOAuthRoutes(v1, a.deps.Broker, a.deps.Orchestrator, a.deps.Servers, "/oauth")
	api.RegisterModelRoutes(v1, a.deps.Logger, a.deps.Backend, a.deps.Availability, a.deps.Events, "/models")

	// The event stream is a raw websocket, registered outside huma.
	mux.Get(apiPathPrefix+"/events", api.EventsHandler(a.deps.Logger, a.deps.Events))

	srv := &http.Server{
		Addr:    a.deps.Addr,
		Handler: mux,
	}
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("Starting API server", "address", a.deps.Addr, "prefix", apiPathPrefix)
		if a.cors.Enabled {
			a.logger.Info("CORS enabled", "origins", a.cors.AllowOrigins)
		}
		if err := srv.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down API server...")
		_ = srv.Shutdown(shutdownCtx)
		a.logger.Info("Shutdown complete")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// applyCORS applies CORS middleware to the router based on the configured options.
func (a *APIServer) applyCORS(mux *chi.Mux) {
	a.logger.Info("Enabling CORS", "origins", a.cors.AllowOrigins)

	corsOptions := cors.Options{
		AllowedOrigins:   a.cors.AllowOrigins,
		AllowedMethods:   a.cors.AllowMethods,
		AllowedHeaders:   a.cors.AllowedHeaders,
		AllowCredentials: a.cors.AllowCredentials,
		MaxAge:           int(a.cors.MaxAge.Seconds()),
	}

	// Handle wildcard origins properly.
	for i, origin := range corsOptions.AllowedOrigins {
		if origin == "*" {
			corsOptions.AllowedOrigins = []string{"*"}
			corsOptions.AllowCredentials = false
			break
		}
		corsOptions.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	mux.Use(cors.Handler(corsOptions))
}

// mapError maps application domain errors to appropriate HTTP status codes.
//
// This function is the central place where domain errors from internal/errors are converted to HTTP responses.
// When adding new errors to internal/errors/errors.go, you MUST add them here to prevent them from falling
// through to the default case which returns HTTP 500.
//
// Mapping guidelines:
//   - 400: Client errors (bad input, invalid requests)
//   - 404: Resource not found errors
//   - 409: Conflicting resource state
//   - 502: External service/dependency failures
//   - 500: Unexpected internal errors (default case)
func mapError(logger hclog.Logger, err error) huma.StatusError {
	switch {
	case stdErrors.Is(err, errors.ErrBadRequest):
		return huma.Error400BadRequest(err.Error())
	case stdErrors.Is(err, errors.ErrServerConflict):
		return huma.Error409Conflict(err.Error())
	case stdErrors.Is(err, errors.ErrServerNotFound):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrToolNotFound):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrUpstreamUnavailable):
		logger.Error("Upstream unavailable", "error", err)
		return huma.Error502BadGateway("Upstream service unavailable", err)
	case stdErrors.Is(err, errors.ErrSandboxStartFailed):
		logger.Error("Sandbox start failed", "error", err)
		return huma.Error502BadGateway("Sandbox failed to start", err)
	case stdErrors.Is(err, errors.ErrModelUnavailable):
		logger.Error("Model unavailable", "error", err)
		return huma.Error502BadGateway("Model unavailable", err)
	default:
		logger.Error("Unexpected internal error", "error", err)
		return huma.Error500InternalServerError("Internal server error", err)
	}
}

// errorHandler wraps error handling for the application when converting to API friendly errors.
// It allows the logger to be supplied to functions that resolve huma.StatusError,
// and it supports different behaviors based on the variadic errors parameter.
func errorHandler(logger hclog.Logger) func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
	return func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		switch len(errs) {
		case 0:
			return huma.NewError(status, msg)
		case 1:
			return mapError(logger, errs[0])
		default:
			return mapError(logger, stdErrors.Join(errs...))
		}
	}
}
