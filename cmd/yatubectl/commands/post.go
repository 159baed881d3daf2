package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"backend-yatube/cmd/yatubectl/output"
	"backend-yatube/internal/db"
	"backend-yatube/internal/posts"

	"github.com/spf13/cobra"
)

const sinceLayout = "2006-01-02"

func newPostCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Inspect posts and move them between groups",
	}
	cmd.AddCommand(newPostListCmd(opts), newPostSetGroupCmd(opts))
	return cmd
}

func newPostListCmd(opts *options) *cobra.Command {
	var (
		search string
		since  string
		page   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		Long: `List posts with their id, publication date, author and group.

Examples:
  yatubectl post list                          # newest 10 posts
  yatubectl post list --search cats --page 2   # text search
  yatubectl post list --since 2024-05-01       # published on or after a date`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := posts.PostFilter{Search: search}
			if since != "" {
				t, err := time.Parse(sinceLayout, since)
				if err != nil {
					return fmt.Errorf("--since must look like %s: %w", sinceLayout, err)
				}
				filter.Since = t
			}

			return opts.withDB(cmd, func(ctx context.Context, q db.Querier) error {
				result, err := posts.NewService(q, nil).ListPosts(ctx, filter, page)
				if err != nil {
					return err
				}
				if result.Count == 0 {
					output.Warning(cmd.OutOrStdout(), "no posts found")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPUBLISHED\tAUTHOR\tGROUP\tTEXT")
				for _, p := range result.Items {
					group := "-"
					if p.Group != nil {
						group = p.Group.Slug
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.PubDate.Format(time.DateTime), p.Author.Username, group, preview(p.Text))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				output.Muted(cmd.OutOrStdout(), "page %d of %d, %d posts", result.Number, result.NumPages, result.Count)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive text search")
	cmd.Flags().StringVar(&since, "since", "", "only posts published on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&page, "page", "1", "page number")
	return cmd
}

func newPostSetGroupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-group <post-id> <slug|->",
		Short: "Move a post into a group, or out of its group with -",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, slug := args[0], args[1]
			if slug == "-" {
				slug = ""
			}
			return opts.withDB(cmd, func(ctx context.Context, q db.Querier) error {
				err := posts.NewService(q, nil).SetPostGroup(ctx, id, slug)
				if errors.Is(err, posts.ErrNotFound) {
					return fmt.Errorf("post %q or group %q not found", id, args[1])
				}
				if err != nil {
					return err
				}
				if slug == "" {
					output.Success(cmd.OutOrStdout(), "post %s removed from its group", id)
				} else {
					output.Success(cmd.OutOrStdout(), "post %s moved to group %s", id, slug)
				}
				return nil
			})
		},
	}
}

// preview shortens text for a table cell.
func preview(text string) string {
	const limit = 40
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
