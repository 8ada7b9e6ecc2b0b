package snapshot

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/models"
)

// MemoryCache is the in-process snapshot cache used when no Redis is
// configured and in tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]models.BalanceSnapshot
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[uuid.UUID]models.BalanceSnapshot)}
}

func (c *MemoryCache) Get(ctx context.Context, walletID uuid.UUID) (*models.BalanceSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.entries[walletID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (c *MemoryCache) Put(ctx context.Context, snap models.BalanceSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[snap.WalletID] = snap
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, walletID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, walletID)
	return nil
}
