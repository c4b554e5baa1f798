package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func containersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "containers",
		Short: "Inspect routing containers started by freeroute",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List managed containers, running or not",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := a.dockerManager()
				if err != nil {
					return err
				}
				defer mgr.Close()

				containers, err := mgr.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tPORT\tSTATUS\tIMAGE")
				for _, c := range containers {
					fmt.Fprintf(w, "%.12s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Port, c.Status, c.Image)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Force-remove containers left behind by interrupted runs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := a.dockerManager()
				if err != nil {
					return err
				}
				defer mgr.Close()

				removed, err := mgr.Reap(cmd.Context())
				if err != nil {
					return err
				}
				for _, c := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s (%s)\n", c.Name, c.Status)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d container(s) removed\n", len(removed))
				return nil
			},
		},
	)
	return cmd
}
