// Package snapshot caches per-wallet balance snapshots. Entries are
// independent per wallet id, so the cache needs no cross-wallet coordination:
// read-shared, write-invalidated by any transfer touching the wallet.
package snapshot

import (
	"context"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/models"
)

// Cache retains the last snapshot per wallet. Freshness is judged by the
// aggregator against its TTL; the cache keeps entries past the freshness
// window so a failing adapter can degrade to last-known values.
type Cache interface {
	// Get returns the cached snapshot, or (nil, nil) on a miss.
	Get(ctx context.Context, walletID uuid.UUID) (*models.BalanceSnapshot, error)
	Put(ctx context.Context, snap models.BalanceSnapshot) error
	Invalidate(ctx context.Context, walletID uuid.UUID) error
}
