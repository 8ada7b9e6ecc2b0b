// Package wallet holds the durable record of user-owned wallets. Each wallet
// is bound to exactly one backend; the binding is immutable after creation.
package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/models"
)

// Store is the wallet persistence contract. Implementations are swapped per
// environment: Postgres in production, in-memory for tests and demo mode.
type Store interface {
	Create(ctx context.Context, w *models.Wallet) error
	Get(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	ListByOwner(ctx context.Context, avatarID uuid.UUID) ([]models.Wallet, error)
}
