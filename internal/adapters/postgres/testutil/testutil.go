// Package testutil provides migrated, per-test Postgres schemas.
//
// The server comes from TEST_DATABASE_URL when set; otherwise a single
// testcontainers postgres container is started for the test binary. Tests are
// skipped under -short or when no server can be reached.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	postgres "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres"
)

const image = "postgres:16-alpine"

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// OpenMigratedPool returns a pool bound to a fresh schema with all migrations
// applied. The schema is dropped when the test finishes.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := serverDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	admin, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{MaxConns: 2})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(admin.Close)

	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := admin.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA %s`, schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, schema))
	})

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{MaxConns: 8, SearchPath: schema})
	if err != nil {
		t.Fatalf("open schema pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func serverDSN(t *testing.T) string {
	t.Helper()
	if dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL")); dsn != "" {
		return dsn
	}
	if testing.Short() {
		t.Skip("postgres tests skipped in -short mode")
	}
	containerOnce.Do(startContainer)
	if containerErr != nil {
		t.Skipf("postgres container unavailable: %v", containerErr)
	}
	return containerDSN
}

func startContainer() {
	// testcontainers panics when no Docker host can be resolved.
	defer func() {
		if r := recover(); r != nil {
			containerErr = fmt.Errorf("docker: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := tcpostgres.Run(ctx, image,
		tcpostgres.WithDatabase("addressbook"),
		tcpostgres.WithUsername("addressbook"),
		tcpostgres.WithPassword("addressbook"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90*time.Second),
		),
	)
	if err != nil {
		containerErr = err
		return
	}
	containerDSN, containerErr = c.ConnectionString(ctx, "sslmode=disable")
}
