package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	postgres "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres"
)

type rootOptions struct {
	databaseURL string
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "addressctl",
		Short: "Address book API operator CLI",
		Long: `addressctl manages the address book API outside the request path.

Example usage:
  addressctl migrate up                       # Apply pending migrations
  addressctl migrate status                   # Show applied/pending migrations
  addressctl token mint --user-id 1 --email a@b.c --name "Ann Lee"
  addressctl hash 'secret123'                 # Print a bcrypt hash
  addressctl idempotency prune --retention 24h`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("read .env: %w", err)
			}
			if opts.databaseURL == "" {
				opts.databaseURL = os.Getenv("DATABASE_URL")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "postgres DSN (default $DATABASE_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall timeout for database commands")

	root.AddCommand(
		newMigrateCmd(opts),
		newTokenCmd(),
		newHashCmd(),
		newIdempotencyCmd(opts),
	)
	return root
}

// withPool opens a pool for the duration of fn.
func (o *rootOptions) withPool(ctx context.Context, fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	if o.databaseURL == "" {
		return errors.New("database URL is required (--database-url or DATABASE_URL)")
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, o.databaseURL, postgres.PoolOptions{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}
