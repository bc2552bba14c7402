package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newTrackCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "track <ticket-number>",
		Short: "Show the public status of a ticket",
		Long: `Track looks up a ticket by its SUP-YYYYMMDD-NNNN number and prints the
redacted status view: current stage, progress timeline and history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := opts.catalog()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			projection, err := opts.client().Track(ctx, args[0])
			if err != nil {
				return err
			}
			renderProjection(cmd.OutOrStdout(), projection, cat)
			return nil
		},
	}
}
