package wallet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/models"
)

// MemoryStore is the in-memory wallet store used in tests and demo mode.
type MemoryStore struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]models.Wallet
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{wallets: make(map[uuid.UUID]models.Wallet)}
}

func (s *MemoryStore) Create(ctx context.Context, w *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[w.ID]; exists {
		return fmt.Errorf("wallet %s already exists", w.ID)
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	s.wallets[w.ID] = *w
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[id]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return &w, nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, avatarID uuid.UUID) ([]models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Wallet
	for _, w := range s.wallets {
		if w.OwnerAvatarID == avatarID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
