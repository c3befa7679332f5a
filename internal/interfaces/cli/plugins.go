package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPluginsCommand creates the plugins command group.
func NewPluginsCommand(container *Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List plugins known to the host",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List plugins found by previous scans in this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := container.Host()
			if err != nil {
				return err
			}

			descs := h.GetAvailablePlugins()
			if len(descs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plugins scanned yet. Run 'rackhost scan' first.")
				return nil
			}
			for _, d := range descs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-5s %s\n", d.Name, d.Format, d.Path)
			}
			return nil
		},
	})

	return cmd
}

// NewDevicesCommand creates the devices command.
func NewDevicesCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := container.Host()
			if err != nil {
				return err
			}
			for _, name := range h.DeviceNames() {
				marker := " "
				if name == container.Config.Driver {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

// NewErrorsCommand creates the errors command group.
func NewErrorsCommand(container *Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Inspect the host error log",
	}

	var count int
	show := &cobra.Command{
		Use:   "show",
		Short: "Show recent error log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := container.Host()
			if err != nil {
				return err
			}

			entries := h.RecentErrors(count)
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent errors.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			return nil
		},
	}
	show.Flags().IntVarP(&count, "count", "n", 50, "Maximum entries to show")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Truncate the error log",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := container.Host()
			if err != nil {
				return err
			}
			if err := h.ClearErrors(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Error log cleared.")
			return nil
		},
	})

	return cmd
}
