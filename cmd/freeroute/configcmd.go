package main

import (
	"fmt"

	"github.com/manthysbr/freeroute/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the stored configuration",
	}

	var reveal bool
	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			if !reveal {
				cfg.ProfileID = config.MaskSecret(cfg.ProfileID)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", a.store.Path(), data)
			return nil
		},
	}
	printCmd.Flags().BoolVar(&reveal, "reveal", false, "show the profile id unmasked")

	cmd.AddCommand(
		printCmd,
		setCmd(a, "set-api-url <url>", "Set the remote routing API base URL", func(c *config.Config, v string) error {
			c.APIURL = v
			return nil
		}),
		setCmd(a, "set-profile <uuid>", "Set the profile id sent with every API call", func(c *config.Config, v string) error {
			if err := config.ValidateProfileID(v); err != nil {
				return err
			}
			c.ProfileID = v
			return nil
		}),
		setCmd(a, "set-host <host>", "Set the environment host sent with every API call", func(c *config.Config, v string) error {
			c.EnvironmentHost = v
			return nil
		}),
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.store.Reset(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration reset (%s)\n", a.store.Path())
				return nil
			},
		},
	)
	return cmd
}

func setCmd(a *app, use, short string, apply func(c *config.Config, v string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.store.Update(func(c *config.Config) error {
				return apply(c, args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved")
			return nil
		},
	}
}
