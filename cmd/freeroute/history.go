package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func historyCmd(a *app) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent routing runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder, closeHistory := a.history()
			defer closeHistory()
			if recorder == nil {
				return fmt.Errorf("run history is disabled (history_db is empty or unavailable)")
			}

			runs, err := recorder.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), runs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tINPUT\tPORT\tOUTCOME\tSTATE\tDURATION\tERROR")
			for _, r := range runs {
				errText := r.Error
				if r.CleanupError != "" {
					errText += " [cleanup: " + r.CleanupError + "]"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format(time.DateTime),
					r.InputPath,
					r.Port,
					r.Outcome,
					r.JobState,
					r.Duration().Round(time.Millisecond),
					errText,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
