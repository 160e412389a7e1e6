package daemon

import (
	"fmt"
	"time"
)

// Options contains optional configuration for the daemon.
// NewOptions should be used to create instances of Options.
type Options struct {
	// APIOptions contains functional options for the API server.
	APIOptions []APIOption

	// HeartbeatInterval specifies how often the sandbox status summary is
	// re-broadcast on the event bus.
	HeartbeatInterval time.Duration
}

// Option defines a functional option for configuring Options.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
// Starts with default values, then applies options in order with later options overriding earlier ones.
func NewOptions(opts ...Option) (Options, error) {
	options := defaultOptions()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return Options{}, err
		}
	}

	return options, nil
}

// WithAPIOptions configures API server options.
// Replaces all previous API configuration including CORS settings.
func WithAPIOptions(apiOpts ...APIOption) Option {
	return func(o *Options) error {
		o.APIOptions = apiOpts
		return nil
	}
}

// WithHeartbeatInterval configures the status re-broadcast interval.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval <= 0 {
			return fmt.Errorf("heartbeat interval must be positive, got %v", interval)
		}
		o.HeartbeatInterval = interval
		return nil
	}
}

// DefaultHeartbeatInterval is the default status re-broadcast interval.
func DefaultHeartbeatInterval() time.Duration {
	return time.Second
}

// defaultOptions returns Options with default values.
func defaultOptions() Options {
	return Options{
		HeartbeatInterval: DefaultHeartbeatInterval(),
	}
}
