// Package ledger is the append-only record of transfer attempts and their
// terminal state, used both for idempotency replay and for audit/history.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/models"
)

// Ledger persists transfer records keyed by request id. A record's state only
// moves forward through the transfer lattice; Update rejects anything else.
// Writer serialization for a given key is provided by the coordinator's
// per-wallet lock, not by the ledger itself.
type Ledger interface {
	// Append inserts a new record. Returns domain.ErrDuplicateRequest when a
	// record with the same request id already exists, in any state.
	Append(ctx context.Context, rec *models.TransferRecord) error

	// Update persists a mutated record. The state may stay put or advance
	// along the lattice; backward transitions are rejected.
	Update(ctx context.Context, rec *models.TransferRecord) error

	// Get returns the record for a request id or domain.ErrTransferNotFound.
	Get(ctx context.Context, requestID string) (*models.TransferRecord, error)

	// ListByWallet returns records touching a wallet, newest first.
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]models.TransferRecord, error)

	// ListInFlight returns records in a non-terminal state, oldest first.
	// Used by the resume worker after a restart.
	ListInFlight(ctx context.Context, limit int) ([]models.TransferRecord, error)

	// ListRequiringReconciliation returns failed records whose compensation
	// did not restore the source balance, newest first.
	ListRequiringReconciliation(ctx context.Context, limit int) ([]models.TransferRecord, error)
}
