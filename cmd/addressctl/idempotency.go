package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	pgidempotency "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres/idempotency"
	platformclock "github.com/Overland-East-Bay/address-book-api/internal/platform/clock"
)

func newIdempotencyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idempotency",
		Short: "Maintain stored Idempotency-Key responses",
	}

	var retention time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete idempotency records older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if retention <= 0 {
				return fmt.Errorf("--retention must be positive, got %s", retention)
			}
			return opts.withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				n, err := pgidempotency.NewStore(pool, retention, platformclock.NewSystemClock()).Prune(ctx)
				if err != nil {
					return fmt.Errorf("prune: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d records\n", n)
				return nil
			})
		},
	}
	prune.Flags().DurationVar(&retention, "retention", 24*time.Hour, "keep records newer than this")
	cmd.AddCommand(prune)
	return cmd
}
