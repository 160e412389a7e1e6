package daemon

import (
	"fmt"
	"net/http"
	"time"
)

// APIOptions contains optional configuration for the API server.
// NewAPIOptions should be used to create instances of APIOptions.
type APIOptions struct {
	// CORS configuration for cross-origin requests.
	CORS CORSConfig

	// ShutdownTimeout specifies how long to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// CORSConfig defines Cross-Origin Resource Sharing settings for the API server.
type CORSConfig struct {
	// Enabled determines whether CORS headers are added to responses.
	Enabled bool

	// AllowCredentials indicates whether the request can include credentials.
	// Must be false when AllowOrigins contains "*"
	AllowCredentials bool

	// AllowedHeaders specifies which headers the client can include in requests.
	AllowedHeaders []string

	// AllowMethods specifies which HTTP methods are permitted.
	// Using strings to match the go-chi/cors library API.
	AllowMethods []string

	// AllowOrigins specifies which origins can access the API.
	// Use ["*"] to allow all origins (not recommended for production).
	AllowOrigins []string

	// MaxAge specifies how long browsers can cache preflight responses.
	MaxAge time.Duration
}

// APIOption defines a functional option for configuring APIOptions.
// Options are applied in order, with later options overriding earlier ones.
type APIOption func(*APIOptions) error

// NewAPIOptions creates APIOptions with optional configurations applied.
// Starts with default values, then applies options in order with later options overriding earlier ones.
func NewAPIOptions(opts ...APIOption) (APIOptions, error) {
	options := APIOptions{
		CORS: CORSConfig{
			Enabled:          false,
			AllowOrigins:     nil,
			AllowMethods:     DefaultCORSAllowMethods(),
			AllowedHeaders:   DefaultCORSAllowHeaders(),
			AllowCredentials: false,
			MaxAge:           DefaultCORSMaxAge(),
		},
		ShutdownTimeout: DefaultAPIShutdownTimeout(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return APIOptions{}, err
		}
	}

	return options, nil
}

// WithCORSEnabled enables or disables CORS support.
func WithCORSEnabled(enabled bool) APIOption {
	return func(o *APIOptions) error {
		o.CORS.Enabled = enabled
		return nil
	}
}

// WithCORSAllowOrigins sets the allowed origins for CORS requests.
func WithCORSAllowOrigins(origins []string) APIOption {
	return func(o *APIOptions) error {
		o.CORS.AllowOrigins = origins
		return nil
	}
}

// WithCORSAllowMethods sets the allowed HTTP methods for CORS requests.
func WithCORSAllowMethods(methods []string) APIOption {
	return func(o *APIOptions) error {
		o.CORS.AllowMethods = methods
		return nil
	}
}

// WithCORSAllowCredentials sets whether credentials are allowed in CORS requests.
func WithCORSAllowCredentials(allowed bool) APIOption {
	return func(o *APIOptions) error {
		o.CORS.AllowCredentials = allowed
		return nil
	}
}

// WithShutdownTimeout configures how long to wait for graceful shutdown.
func WithShutdownTimeout(timeout time.Duration) APIOption {
	return func(o *APIOptions) error {
		if timeout <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got %v", timeout)
		}
		o.ShutdownTimeout = timeout
		return nil
	}
}

// DefaultCORSAllowHeaders returns standard headers required for API interaction.
func DefaultCORSAllowHeaders() []string {
	return []string{
		"Accept",
		"Accept-Language",
		"Content-Language",
		"Content-Type",
		"Range",
	}
}

// DefaultCORSAllowMethods returns standard HTTP methods for CORS.
func DefaultCORSAllowMethods() []string {
	return []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
}

// DefaultCORSMaxAge returns the default CORS max age duration.
func DefaultCORSMaxAge() time.Duration {
	return 5 * time.Minute
}

// DefaultAPIShutdownTimeout is the default time allowed for API server graceful shutdown.
func DefaultAPIShutdownTimeout() time.Duration {
	return 5 * time.Second
}
