package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewBlacklistCommand creates the blacklist command group.
func NewBlacklistCommand(container *Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage the plugin blacklist",
		Long: `Manage the plugin blacklist.

Blacklisted paths are skipped before their probe starts during scans
and are refused by load. The list persists across sessions.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List blacklisted plugin paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := container.Host()
			if err != nil {
				return err
			}

			paths := h.BlacklistPaths()
			if len(paths) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Blacklist is empty.")
				return nil
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <path>",
		Short: "Blacklist a plugin path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := container.Host()
			if err != nil {
				return err
			}
			if err := h.BlacklistAdd(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Blacklisted %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <path>",
		Short: "Remove a plugin path from the blacklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := container.Host()
			if err != nil {
				return err
			}
			if err := h.BlacklistRemove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	})

	return cmd
}
