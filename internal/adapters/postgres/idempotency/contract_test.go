package idempotency

import (
	"testing"
	"time"

	"github.com/Overland-East-Bay/address-book-api/internal/adapters/contracttest"
	memclock "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/clock"
	"github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres/testutil"
	idempotencyport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/idempotency"
)

func TestContract_PostgresIdempotencyStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return NewStore(pool, 0, memclock.NewManualClock(time.Unix(123, 0))), nil
	})
}
