package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/display-support/internal/board"
	"github.com/spec-kit/display-support/internal/domain"
)

func newBoardCmd(opts *rootOptions) *cobra.Command {
	var status, search string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show all tickets grouped by lifecycle stage",
		Long: `Board loads every ticket and prints one column per lifecycle stage with
the totals below. With --status or --search it prints a filtered list instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireToken(); err != nil {
				return err
			}
			if status != "" && !domain.TicketStatus(status).Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			cat, err := opts.catalog()
			if err != nil {
				return err
			}
			b, err := loadBoard(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if status == "" && search == "" {
				renderBoard(out, b, cat)
				return nil
			}
			renderList(out, b.Filter(domain.TicketStatus(status), search), cat)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show tickets in this status")
	cmd.Flags().StringVar(&search, "search", "", "match ticket number, contact person or display number")
	return cmd
}

func newMoveCmd(opts *rootOptions) *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "move <ticket-id> <status>",
		Short: "Move a ticket to another lifecycle stage",
		Long: `Move changes a ticket's status and records the optional comment in its
history. Any stage may follow any other.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireToken(); err != nil {
				return err
			}
			cat, err := opts.catalog()
			if err != nil {
				return err
			}
			b, err := loadBoard(cmd.Context(), opts)
			if err != nil {
				return err
			}

			var note *string
			if cmd.Flags().Changed("comment") {
				note = &comment
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			target := domain.TicketStatus(args[1])
			if err := b.ChangeStatus(ctx, args[0], target, note); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ticket %s moved to %s\n", args[0], cat.StatusLabel(target))
			renderStats(cmd.OutOrStdout(), b.Stats())
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "comment stored with the status change")
	return cmd
}

func loadBoard(parent context.Context, opts *rootOptions) (*board.Board, error) {
	ctx, cancel := context.WithTimeout(parent, opts.timeout)
	defer cancel()

	b := board.New(opts.client(), opts.logger)
	if err := b.Load(ctx); err != nil {
		return nil, err
	}
	return b, nil
}
