package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/manthysbr/freeroute/internal/core/services"
	"github.com/spf13/cobra"
)

func routeCmd(a *app) *cobra.Command {
	var (
		port     int
		output   string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "route <input.dsn> [more.dsn...]",
		Short: "Start a routing container, route the design(s) and tear the container down",
		Long: `Route one or more Specctra DSN files in freshly started freerouting containers.

With a single input the routed session is written to --output, or stdout when
--output is empty. With several inputs each one gets its own container on
consecutive ports starting at --port and --output names a directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == 0 {
				port = a.config().Engine.Port
			}

			var dsts []string
			if len(args) > 1 {
				if output == "" {
					return fmt.Errorf("--output directory is required when routing several inputs")
				}
				var err error
				if dsts, err = batchDestinations(output, args); err != nil {
					return err
				}
			}

			mgr, err := a.dockerManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			recorder, closeHistory := a.history()
			defer closeHistory()

			wf := a.workflow(mgr, recorder)

			if len(args) == 1 {
				out, err := wf.Run(cmd.Context(), args[0], port)
				if err != nil {
					return err
				}
				return writeArtifact(cmd.OutOrStdout(), output, out)
			}

			if err := os.MkdirAll(output, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			results, batchErr := wf.RunBatch(cmd.Context(), services.PortsFrom(port, args), parallel)
			for i, r := range results {
				if r.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.InputPath, r.Err)
					continue
				}
				if err := writeArtifact(cmd.OutOrStdout(), dsts[i], r.Output); err != nil {
					return err
				}
			}
			return batchErr
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "host port for the routing container (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, or directory for several inputs")
	cmd.Flags().IntVar(&parallel, "parallel", 2, "containers running at once when routing several inputs")
	return cmd
}

// writeArtifact writes to path, or to stdout when path is empty.
func writeArtifact(stdout io.Writer, path string, out domain.OutputArtifact) error {
	if path == "" {
		_, err := stdout.Write(out.Data)
		return err
	}
	if err := os.WriteFile(path, out.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(stdout, "Output written to %s\n", path)
	return nil
}

// routedName maps board.dsn to board.ses.
func routedName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".ses"
}

// batchDestinations maps every input to its output file under dir and rejects
// inputs that would overwrite each other, such as a/board.dsn and b/board.dsn.
func batchDestinations(dir string, inputs []string) ([]string, error) {
	dsts := make([]string, len(inputs))
	owner := make(map[string]string, len(inputs))
	for i, in := range inputs {
		dst := filepath.Join(dir, routedName(in))
		if prev, ok := owner[dst]; ok {
			return nil, fmt.Errorf("%s and %s would both be written to %s", prev, in, dst)
		}
		owner[dst] = in
		dsts[i] = dst
	}
	return dsts, nil
}
