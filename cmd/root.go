// Package cmd defines the stewardd CLI.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/steward-ai/stewardd/internal/cmd"
	"github.com/steward-ai/stewardd/internal/flags"
)

type RootCmd struct {
	*cmd.BaseCmd
}

func Execute() error {
	rootCmd := NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}

	return nil
}

func NewRootCmd() *cobra.Command {
	c := &RootCmd{
		BaseCmd: &cmd.BaseCmd{},
	}

	rootCmd := &cobra.Command{
		Use:          "stewardd <command> [args]",
		Short:        "stewardd manages MCP servers for the Steward chat client.",
		Long:         c.longDescription(),
		SilenceUsage: true,
		Version:      cmd.Version(),
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(NewDaemonCmd(c.BaseCmd))

	return rootCmd
}

func (c *RootCmd) longDescription() string {
	return `stewardd installs, runs and removes MCP servers for the Steward chat client:
it sandboxes local servers, discovers and classifies their tools, and brokers
OAuth credentials through a remote proxy without holding client secrets.`
}
