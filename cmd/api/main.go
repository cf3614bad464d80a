package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Overland-East-Bay/address-book-api/internal/adapters/httpapi"
	memaddressrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/addressrepo"
	memidempotency "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/idempotency"
	memrevocation "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/revocation"
	memuserrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/userrepo"
	postgres "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres"
	pgaddressrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres/addressrepo"
	pgidempotency "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres/idempotency"
	pguserrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres/userrepo"
	redisrevocation "github.com/Overland-East-Bay/address-book-api/internal/adapters/redis/revocation"
	"github.com/Overland-East-Bay/address-book-api/internal/app/accounts"
	"github.com/Overland-East-Bay/address-book-api/internal/app/addresses"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/bcrypthasher"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/token"
	platformclock "github.com/Overland-East-Bay/address-book-api/internal/platform/clock"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/config"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/logging"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/metrics"
	addressrepoport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/addressrepo"
	idempotencyport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/idempotency"
	revocationport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/revocation"
	userrepoport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/userrepo"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet: configuration decides its format.
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	clk := platformclock.NewSystemClock()

	// Startup-fatal when APP_SECRET is empty.
	tokens, err := token.New(token.Config{
		Secret: cfg.Auth.Secret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	}, clk)
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}
	hasher, err := bcrypthasher.New(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	var (
		userRepo  userrepoport.Repository
		addrRepo  addressrepoport.Repository
		idemStore idempotencyport.Store
		pruner    *pgidempotency.Store
	)

	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			return fmt.Errorf("invalid postgres config: %w", err)
		}
		defer pool.Close()

		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Info("migrations applied")
		}

		userRepo = pguserrepo.NewRepo(pool)
		addrRepo = pgaddressrepo.NewRepo(pool)
		pruner = pgidempotency.NewStore(pool, cfg.IdempotencyRetention, clk)
		idemStore = pruner
	default:
		users := memuserrepo.NewRepo()
		userRepo = users
		addrRepo = memaddressrepo.NewRepo(users)
		idemStore = memidempotency.NewStore(cfg.IdempotencyRetention, clk)
	}

	var revoked revocationport.Store
	switch cfg.RevocationBackend {
	case config.RevocationMemory:
		revoked = memrevocation.NewStore(cfg.RevocationCapacity, cfg.Auth.TokenTTL, clk)
	case config.RevocationRedis:
		rdb, err := redisrevocation.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		revoked = redisrevocation.NewStore(rdb, clk)
	}

	acct := accounts.NewService(userRepo, hasher, tokens, clk)
	if revoked != nil {
		acct.WithRevocation(revoked)
	}

	handler := httpapi.NewRouter(httpapi.RouterOptions{
		Accounts:      acct,
		Addresses:     addresses.NewService(addrRepo, clk),
		Tokens:        tokens,
		Revoked:       revoked,
		Idem:          idemStore,
		Metrics:       metrics.New(),
		Logger:        log,
		AuthRateLimit: rate.Limit(cfg.AuthRateLimit),
		AuthRateBurst: cfg.AuthRateBurst,
		TrustProxy:    cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening",
			"port", cfg.Port,
			"storage", cfg.StorageBackend,
			"revocation", cfg.RevocationBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if pruner != nil {
		g.Go(func() error {
			t := time.NewTicker(pruneInterval)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					n, err := pruner.Prune(gctx)
					if err != nil {
						log.Warn("idempotency prune failed", "err", err)
						continue
					}
					log.Debug("idempotency records pruned", "count", n)
				}
			}
		})
	}
	return g.Wait()
}
