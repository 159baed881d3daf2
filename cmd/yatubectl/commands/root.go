// Package commands implements the yatubectl administration commands.
package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"backend-yatube/internal/config"
	"backend-yatube/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// options holds the global flags shared by every subcommand.
type options struct {
	cfg      config.Config
	dbURL    string
	redisURL string
}

var (
	connectPostgresFn = func(ctx context.Context, url string) (db.Querier, func(), error) {
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pool, pool.Close, nil
	}
	connectRedisFn = func(addr, password string) *redis.Client {
		return redis.NewClient(&redis.Options{Addr: addr, Password: password})
	}
)

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree. Flag defaults come from cfg.
func NewRootCmd(cfg config.Config) *cobra.Command {
	opts := &options{cfg: cfg}

	root := &cobra.Command{
		Use:   "yatubectl",
		Short: "Administer a Yatube installation",
		Long: `yatubectl manages the parts of Yatube that have no HTTP route:
the database schema, groups, posts, user accounts and the listing cache.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dbURL, "db", cfg.PostgresURL, "PostgreSQL connection URL")
	root.PersistentFlags().StringVar(&opts.redisURL, "redis", cfg.RedisAddr, "Redis address (host:port)")

	root.AddCommand(
		newMigrateCmd(opts),
		newGroupCmd(opts),
		newPostCmd(opts),
		newUserCmd(opts),
		newCacheCmd(opts),
	)
	return root
}

// withDB opens the database for the duration of fn.
func (o *options) withDB(cmd *cobra.Command, fn func(ctx context.Context, q db.Querier) error) error {
	if o.dbURL == "" {
		return fmt.Errorf("--db is required")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	q, closeFn, err := connectPostgresFn(ctx, o.dbURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer closeFn()
	return fn(ctx, q)
}
