package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	clockport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/clock"
)

const keyPrefix = "revoked:jti:"

// Store keeps revoked token ids in Redis. Each key expires when the token
// would have expired, so the set never outgrows the live token population.
type Store struct {
	rdb redis.UniversalClient
	clk clockport.Clock
}

func NewStore(rdb redis.UniversalClient, clk clockport.Clock) *Store {
	return &Store{rdb: rdb, clk: clk}
}

// NewClient parses a redis:// URL and verifies connectivity.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("REDIS_URL is required for the redis revocation backend")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *Store) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(s.clk.Now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, keyPrefix+tokenID, until.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}
