package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rackhost.audio/cli/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(container *Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update the host configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := container.Config
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file:    %s\n", config.Path())
			fmt.Fprintf(out, "Plugin dirs:    %s\n", strings.Join(cfg.PluginDirs, ", "))
			fmt.Fprintf(out, "Sample rate:    %v Hz\n", cfg.SampleRate)
			fmt.Fprintf(out, "Period frames:  %d\n", cfg.PeriodFrames)
			fmt.Fprintf(out, "Probe timeout:  %d ms\n", cfg.ProbeTimeoutMs)
			fmt.Fprintf(out, "Driver:         %s\n", cfg.Driver)
			fmt.Fprintf(out, "Blacklist:      %s\n", cfg.BlacklistPath)
			fmt.Fprintf(out, "Error log:      %s\n", cfg.ErrorLogPath)
			return nil
		},
	})

	addDir := &cobra.Command{
		Use:   "add-dir <directory>",
		Short: "Add a plugin directory and save the config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, d := range container.Config.PluginDirs {
				if d == args[0] {
					return nil
				}
			}
			container.Config.PluginDirs = append(container.Config.PluginDirs, args[0])
			if err := config.Save(container.Config); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", args[0])
			return nil
		},
	}
	cmd.AddCommand(addDir)

	return cmd
}
