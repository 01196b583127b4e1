package main

import (
	"errors"

	"github.com/spf13/cobra"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/history"
)

func newHistoryCmd(opts *cliOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent discovery runs, or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.initialize(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer application.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := application.Run(cmd.Context(), args[0])
				if errors.Is(err, history.ErrRunNotFound) {
					return exitWithMessage(exitUsage, "run "+args[0]+" not found")
				}
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(out, run)
				}
				if err := printRuns(out, []domain.RunReport{run}, false); err != nil {
					return err
				}
				for _, attempt := range run.Attempts {
					printAttempt(out, attempt)
				}
				return nil
			}

			runs, err := application.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRuns(out, runs, opts.jsonOutput)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	return cmd
}
