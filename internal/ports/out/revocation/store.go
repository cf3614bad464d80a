package revocation

import (
	"context"
	"time"
)

// Store records token ids that must be rejected before their natural expiry.
// Entries may be dropped once until has passed.
type Store interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
