package cli

import (
	"os"

	"github.com/spf13/cobra"

	"rackhost.audio/cli/internal/infrastructure/bridge"
	"rackhost.audio/cli/internal/infrastructure/scanner"
)

// NewProbeWorkerCommand creates the hidden probe helper subcommand. The
// prober launches the rackhost binary with this subcommand, one child
// per candidate file, so an inspection crash only kills the child.
func NewProbeWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "probe-worker <file>",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(scanner.RunWorker(args[0], os.Stdout))
		},
	}
}

// NewBridgeWorkerCommand creates the hidden bitness-bridge helper
// subcommand: a long-lived command/response loop over stdio.
func NewBridgeWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "bridge-worker",
		Hidden: true,
		Args:   cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(bridge.RunWorker(os.Stdin, os.Stdout))
		},
	}
}
