package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage routing sessions on the remote API",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create a new routing session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				session, err := a.remote().CreateSession(cmd.Context())
				if err != nil {
					return err
				}
				a.remember(session.ID, "")
				return printJSON(cmd.OutOrStdout(), session)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sessions, err := a.remote().ListSessions(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sessions)
			},
		},
		&cobra.Command{
			Use:   "get [sessionId]",
			Short: "Get session details",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := orLast(argOrEmpty(args), a.config().LastSessionID, "session id")
				if err != nil {
					return err
				}
				session, err := a.remote().GetSession(cmd.Context(), domain.SessionID(id))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), session)
			},
		},
	)
	return cmd
}

func jobCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage routing jobs on the remote API",
	}
	cmd.AddCommand(
		jobCreateCmd(a),
		jobListCmd(a),
		jobGetCmd(a),
		jobUploadCmd(a),
		jobStartCmd(a),
		jobOutputCmd(a),
	)
	return cmd
}

func jobCreateCmd(a *app) *cobra.Command {
	var sessionID, name, priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new routing job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			id, err := orLast(sessionID, cfg.LastSessionID, "--session-id")
			if err != nil {
				return err
			}
			if name == "" {
				name = cfg.Job.Name
			}
			if priority == "" {
				priority = cfg.Job.Priority
			}

			job, err := a.remote().EnqueueJob(cmd.Context(), domain.JobRequest{
				SessionID: domain.SessionID(id),
				Name:      name,
				Priority:  priority,
			})
			if err != nil {
				return err
			}
			a.remember(job.SessionID, job.ID)
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session-id", "s", "", "session id (default: last created)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "job name")
	cmd.Flags().StringVar(&priority, "priority", "", "job priority")
	return cmd
}

func jobListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [sessionId]",
		Short: "List jobs for a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := orLast(argOrEmpty(args), a.config().LastSessionID, "session id")
			if err != nil {
				return err
			}
			jobs, err := a.remote().ListJobs(cmd.Context(), domain.SessionID(id))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), jobs)
		},
	}
}

func jobGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [jobId]",
		Short: "Get job details",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := orLast(argOrEmpty(args), a.config().LastJobID, "job id")
			if err != nil {
				return err
			}
			job, err := a.remote().GetJob(cmd.Context(), domain.JobID(id))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}

func jobUploadCmd(a *app) *cobra.Command {
	var jobID, file string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a design file for a job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := orLast(jobID, a.config().LastJobID, "--job-id")
			if err != nil {
				return err
			}
			input, err := domain.LoadInput(file)
			if err != nil {
				return err
			}
			if err := a.remote().UploadInput(cmd.Context(), domain.JobID(id), input); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes) to job %s\n", input.Filename, len(input.Data), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&jobID, "job-id", "j", "", "job id (default: last created)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "design file path")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func jobStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start [jobId]",
		Short: "Start a routing job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := orLast(argOrEmpty(args), a.config().LastJobID, "job id")
			if err != nil {
				return err
			}
			if err := a.remote().StartJob(cmd.Context(), domain.JobID(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started job %s\n", id)
			return nil
		},
	}
}

func jobOutputCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "output [jobId]",
		Short: "Download the routed output of a job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := orLast(argOrEmpty(args), a.config().LastJobID, "job id")
			if err != nil {
				return err
			}
			out, err := a.remote().GetOutput(cmd.Context(), domain.JobID(id))
			if err != nil {
				return err
			}
			return writeArtifact(cmd.OutOrStdout(), output, out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func systemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Routing service information",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Get system status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.remote().SystemStatus(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	})
	return cmd
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
