package main

import "github.com/spf13/cobra"

func newScheduleCmd(opts *cliOptions) *cobra.Command {
	flags := &discoveryFlags{}
	cmd := &cobra.Command{
		Use:   "schedule [providers...]",
		Short: "Print the connection order a prepare run would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.initialize(cmd.Context(), flags.overrides(cmd.Flags()))
			if err != nil {
				return err
			}
			defer application.Close()
			return printSelection(cmd.OutOrStdout(), application.Schedule(flags.request(args)), opts.jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&flags.safeMode, "safe-mode", false, "only schedule providers on the safe list")
	return cmd
}
