package commands

import (
	"context"
	"fmt"
	"time"

	"backend-yatube/cmd/yatubectl/output"
	"backend-yatube/internal/cache"

	"github.com/spf13/cobra"
)

func newCacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the listing page cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached listing page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.redisURL == "" {
				output.Warning(cmd.OutOrStdout(), "no redis configured, nothing to clear")
				return nil
			}
			rdb := connectRedisFn(opts.redisURL, opts.cfg.RedisPassword)
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := cache.NewStorage(rdb, cache.DefaultPrefix).Clear(ctx); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			output.Success(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	})
	return cmd
}
