package commands

import (
	"context"

	"backend-yatube/cmd/yatubectl/output"
	"backend-yatube/internal/db"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Create every table, constraint and index Yatube needs.
Statements are idempotent, so running migrate twice is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withDB(cmd, func(ctx context.Context, q db.Querier) error {
				if err := db.Migrate(ctx, q); err != nil {
					return err
				}
				output.Success(cmd.OutOrStdout(), "schema applied (%d statements)", len(db.Statements()))
				return nil
			})
		},
	}
}
