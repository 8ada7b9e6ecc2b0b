// Package bridge contracts the external inter-chain value movement service
// used for the credit leg of cross-backend transfers.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/omniwallet/omniwallet/internal/chain"
	"github.com/omniwallet/omniwallet/internal/domain"
)

// Bridge performs the destination credit of a cross-backend transfer. The
// source debit has already been confirmed by the time Credit is called; the
// amount is already converted to the destination backend's native micros.
type Bridge interface {
	// EscrowAddress is where the source-backend debit of a cross-backend
	// transfer is sent before the bridge credits the destination.
	EscrowAddress(sourceBackendID string) string
	Credit(ctx context.Context, destBackendID, toAddress string, amountMicros int64) (string, error)
	Status(ctx context.Context, destBackendID, bridgeTxID string) (chain.TransferStatus, error)
}

// SimBridge credits destination backends through their Depositor capability.
type SimBridge struct {
	registry *chain.Registry

	mu        sync.Mutex
	creditErr error
}

func NewSimBridge(registry *chain.Registry) *SimBridge {
	return &SimBridge{registry: registry}
}

// EscrowAddress returns the simulated bridge escrow account on a backend.
func (b *SimBridge) EscrowAddress(sourceBackendID string) string {
	return fmt.Sprintf("bridge-escrow-%s", sourceBackendID)
}

// SetCreditError makes Credit fail with err until cleared with nil.
func (b *SimBridge) SetCreditError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creditErr = err
}

func (b *SimBridge) Credit(ctx context.Context, destBackendID, toAddress string, amountMicros int64) (string, error) {
	b.mu.Lock()
	injected := b.creditErr
	b.mu.Unlock()
	if injected != nil {
		return "", injected
	}

	adapter, err := b.registry.Resolve(destBackendID)
	if err != nil {
		return "", err
	}
	dep, ok := adapter.(chain.Depositor)
	if !ok {
		return "", fmt.Errorf("%w: backend %s does not accept bridged deposits", domain.ErrAdapterRejected, destBackendID)
	}
	return dep.Deposit(ctx, toAddress, amountMicros)
}

func (b *SimBridge) Status(ctx context.Context, destBackendID, bridgeTxID string) (chain.TransferStatus, error) {
	adapter, err := b.registry.Resolve(destBackendID)
	if err != nil {
		return "", err
	}
	return adapter.GetTransferStatus(ctx, bridgeTxID)
}
