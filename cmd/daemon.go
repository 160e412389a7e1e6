package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steward-ai/stewardd/internal/cmd"
	"github.com/steward-ai/stewardd/internal/config"
	"github.com/steward-ai/stewardd/internal/daemon"
	"github.com/steward-ai/stewardd/internal/flags"
)

// DaemonCmd should be used to represent the 'daemon' command.
type DaemonCmd struct {
	*cmd.BaseCmd
	Addr string
}

// NewDaemonCmd creates a newly configured (Cobra) command.
func NewDaemonCmd(baseCmd *cmd.BaseCmd) *cobra.Command {
	c := &DaemonCmd{
		BaseCmd: baseCmd,
	}

	cobraCommand := &cobra.Command{
		Use:   "daemon [--addr]",
		Short: "Launches a stewardd daemon instance",
		Long:  "Launches a stewardd daemon instance, which manages MCP servers and serves the HTTP API",
		RunE:  c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Addr,
		"addr",
		"",
		"Address for the daemon to bind (overrides the config file)",
	)

	return cobraCommand
}

// run is configured (via NewDaemonCmd) to be called by the Cobra framework when the command is executed.
// It may return an error (or nil, when there is no error).
func (c *DaemonCmd) run(_ *cobra.Command, _ []string) error {
	logger := c.Logger()

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return err
	}

	if addr := strings.TrimSpace(c.Addr); addr != "" {
		cfg.API.Addr = addr
	}

	deps, err := daemon.NewDependencies(logger, cfg)
	if err != nil {
		return fmt.Errorf("error configuring stewardd daemon: %w", err)
	}

	d, err := daemon.NewDaemon(deps, daemon.WithHeartbeatInterval(cfg.HeartbeatInterval()))
	if err != nil {
		return fmt.Errorf("failed to create stewardd daemon instance: %w", err)
	}

	// Create the signal handling context for the application.
	daemonCtx, daemonCtxCancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer daemonCtxCancel()

	runErr := make(chan error, 1)
	go func() {
		if err := d.StartAndManage(daemonCtx); err != nil && !errors.Is(err, context.Canceled) {
			runErr <- err
		}
		close(runErr)
	}()

	select {
	case <-daemonCtx.Done():
		logger.Info("Shutting down daemon")
		err := <-runErr // Wait for cleanup and deferred logging.
		return err      // Graceful Ctrl+C / SIGTERM.
	case err := <-runErr:
		logger.Error("daemon exited with error", "error", err)
		return err // Propagate daemon failure.
	}
}
