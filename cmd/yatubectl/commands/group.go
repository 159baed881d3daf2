package commands

import (
	"context"
	"errors"
	"fmt"

	"backend-yatube/cmd/yatubectl/output"
	"backend-yatube/internal/db"
	"backend-yatube/internal/posts"

	"github.com/spf13/cobra"
)

func newGroupCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
	}
	cmd.AddCommand(newGroupCreateCmd(opts), newGroupDeleteCmd(opts))
	return cmd
}

func newGroupCreateCmd(opts *options) *cobra.Command {
	var form posts.GroupForm
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group",
		Long: `Create a group posts can be tagged with.

Examples:
  yatubectl group create --title "Cats" --slug cats --description "All about cats"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withDB(cmd, func(ctx context.Context, q db.Querier) error {
				group, err := posts.NewService(q, nil).CreateGroup(ctx, form)
				if fields := posts.FieldErrors(err); fields != nil {
					for name, msg := range fields {
						output.Warning(cmd.ErrOrStderr(), "%s: %s", name, msg)
					}
					return fmt.Errorf("group not created")
				}
				if err != nil {
					return err
				}
				output.Success(cmd.OutOrStdout(), "group %s created", group.Slug)
				output.Muted(cmd.OutOrStdout(), "id %s", group.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&form.Title, "title", "", "group title")
	cmd.Flags().StringVar(&form.Slug, "slug", "", "unique slug used in /group/<slug>")
	cmd.Flags().StringVar(&form.Description, "description", "", "group description")
	return cmd
}

func newGroupDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete a group; its posts are kept without a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(cmd, func(ctx context.Context, q db.Querier) error {
				err := posts.NewService(q, nil).DeleteGroup(ctx, args[0])
				if errors.Is(err, posts.ErrNotFound) {
					return fmt.Errorf("group %q not found", args[0])
				}
				if err != nil {
					return err
				}
				output.Success(cmd.OutOrStdout(), "group %s deleted", args[0])
				return nil
			})
		},
	}
}
