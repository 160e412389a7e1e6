package daemon

import (
	"fmt"
	"net"
	"reflect"
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/steward-ai/stewardd/internal/config"
)

// Dependencies contains required dependencies for the Daemon.
// NewDependencies should be used to create instances of Dependencies.
type Dependencies struct {
	// Logger for daemon and subcomponent operations.
	Logger hclog.Logger

	// Config is the validated daemon configuration.
	Config config.Config
}

// NewDependencies creates validated Dependencies.
func NewDependencies(logger hclog.Logger, cfg config.Config) (Dependencies, error) {
	deps := Dependencies{
		Logger: logger,
		Config: cfg,
	}

	if err := deps.Validate(); err != nil {
		return Dependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}

	if err := validateAddr(d.Config.API.Addr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.Config.API.Addr, err)
	}

	return d.Config.Validate()
}

// validateAddr checks if the address is a valid "host:port" string.
func validateAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	if port == "" {
		return fmt.Errorf("address missing port")
	}

	if _, err := strconv.Atoi(port); err != nil {
		if _, err := net.LookupPort("tcp", port); err != nil {
			return fmt.Errorf("invalid address port: %s", port)
		}
	}

	return nil
}
