package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "freeroute",
		Short:         "Route PCB designs with freerouting in a disposable container",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/freeroute/config.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging on stderr")
	flags.StringVar(&a.apiURL, "api-url", "", "routing API base URL for session/job/system commands")
	flags.StringVar(&a.profileID, "profile-id", "", "value of the Freerouting-Profile-ID header")
	flags.StringVar(&a.envHost, "host", "", "value of the Freerouting-Environment-Host header")

	root.AddCommand(
		routeCmd(a),
		sessionCmd(a),
		jobCmd(a),
		systemCmd(a),
		configCmd(a),
		historyCmd(a),
		containersCmd(a),
	)
	return root
}
