package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"rackhost.audio/cli/internal/config"
)

// NewScanCommand creates the scan command.
func NewScanCommand(container *Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [directory...]",
		Short: "Scan directories for plugins",
		Long: `Scan directories recursively for plugin binaries.

Each candidate file is probed in a short-lived child process with a
hard timeout, so a crashing or hanging binary only fails its own probe.
With no arguments the configured plugin directories are scanned.

Examples:
  rackhost scan                   # Scan configured directories
  rackhost scan ~/vst ~/vst3      # Scan specific directories`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := args
			if len(dirs) == 0 {
				dirs = container.Config.PluginDirs
			}
			if len(dirs) == 0 {
				return fmt.Errorf("no directories to scan: pass one or set plugin_dirs in %s", config.Path())
			}

			h, err := container.Host()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			err = h.Scan(ctx, dirs, func(current, total int, path string) {
				fmt.Fprintf(out, "[%d/%d] %s\n", current, total, filepath.Base(path))
			})
			if err != nil {
				return err
			}

			descs := h.GetAvailablePlugins()
			fmt.Fprintf(out, "\n%d plugin(s) found:\n", len(descs))
			for _, d := range descs {
				bits := "64-bit"
				if !d.Is64Bit {
					bits = "32-bit"
				}
				fmt.Fprintf(out, "  %-24s %-5s %s  %s\n", d.Name, d.Format, bits, d.Path)
			}
			return nil
		},
	}
	return cmd
}

// NewProbeCommand creates the probe command for a single file.
func NewProbeCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Probe a single plugin file",
		Long: `Probe one candidate file in an isolated child process and print the
resulting descriptor, or the reason the file was rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := container.Host()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			desc, err := h.Probe(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:       %s\n", desc.Name)
			fmt.Fprintf(out, "Vendor:     %s\n", desc.Vendor)
			fmt.Fprintf(out, "Format:     %s\n", desc.Format)
			fmt.Fprintf(out, "64-bit:     %v\n", desc.Is64Bit)
			fmt.Fprintf(out, "Editor:     %v\n", desc.HasEditor)
			fmt.Fprintf(out, "I/O:        %din / %dout\n", desc.NumInputs, desc.NumOutputs)
			fmt.Fprintf(out, "Unique ID:  0x%08X\n", desc.UniqueID)
			fmt.Fprintf(out, "Instrument: %v\n", desc.IsInstrument)
			return nil
		},
	}
}
