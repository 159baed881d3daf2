package commands

import (
	"context"
	"errors"
	"fmt"

	"backend-yatube/cmd/yatubectl/output"
	"backend-yatube/internal/auth"
	"backend-yatube/internal/db"

	"github.com/spf13/cobra"
)

func newUserCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user together with their posts and follows",
		Long: `Delete a user. Their posts, follows and refresh tokens go with them;
comments they left on other posts stay, without an author.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(cmd, func(ctx context.Context, q db.Querier) error {
				err := auth.NewService(opts.cfg.JWTSecret, q).DeleteUser(ctx, args[0])
				if errors.Is(err, auth.ErrUserNotFound) {
					return fmt.Errorf("user %q not found", args[0])
				}
				if err != nil {
					return err
				}
				output.Success(cmd.OutOrStdout(), "user %s deleted", args[0])
				return nil
			})
		},
	})
	return cmd
}
