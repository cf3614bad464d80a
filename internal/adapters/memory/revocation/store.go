package revocation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	clockport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/clock"
)

// DefaultSize bounds the number of revoked token ids kept in memory.
const DefaultSize = 100_000

// ErrFull is returned by Revoke when every slot holds a token that has not
// expired yet. Evicting one would make that token valid again.
var ErrFull = errors.New("revocation list is full")

// Store is an in-process revocation list backed by an expirable LRU.
// Entries live for ttl (set it to the token lifetime); an entry whose until
// has passed is treated as absent. The LRU never evicts a live entry: at
// capacity, expired entries are dropped first and Revoke fails with ErrFull
// if none are.
type Store struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, time.Time]
	size  int
	clk   clockport.Clock
}

func NewStore(size int, ttl time.Duration, clk clockport.Clock) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	return &Store{
		cache: expirable.NewLRU[string, time.Time](size, nil, ttl),
		size:  size,
		clk:   clk,
	}
}

func (s *Store) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	_ = ctx
	now := s.clk.Now()
	if !until.After(now) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cache.Contains(tokenID) && s.cache.Len() >= s.size {
		s.dropExpired(now)
		if s.cache.Len() >= s.size {
			return ErrFull
		}
	}
	s.cache.Add(tokenID, until)
	return nil
}

func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_ = ctx
	until, ok := s.cache.Peek(tokenID)
	if !ok {
		return false, nil
	}
	return until.After(s.clk.Now()), nil
}

func (s *Store) Len() int { return s.cache.Len() }

func (s *Store) dropExpired(now time.Time) {
	for _, id := range s.cache.Keys() {
		if until, ok := s.cache.Peek(id); ok && !until.After(now) {
			s.cache.Remove(id)
		}
	}
}
