package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wealthadvisor-ai/internal/bootstrap"
	"wealthadvisor-ai/internal/repository/implementation"
)

func newReviewCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect the CA review audit trail",
	}

	var status string
	var limit int
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List escalated answers, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := bootstrap.OpenDatabase(e.cfg, e.log)
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("review audit needs DB_CONNECTION_STRING")
			}
			audits, err := implementation.NewReviewAuditRepository(db).List(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			return printJSON(e.out, audits)
		},
	}
	list.Flags().StringVarP(&status, "status", "s", "", "Filter by status (pending_review, approved, edited, rejected)")
	list.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows")

	cmd.AddCommand(list)
	return cmd
}
