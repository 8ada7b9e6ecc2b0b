// Package chain defines the capability interface every backend adapter must
// implement, one implementation per blockchain network or fiat rail, and the
// registry that resolves backend identifiers to adapters.
package chain

import "context"

// TransferStatus is the polled status of a submitted backend transaction.
// This core has no subscription or webhook model; status is polled, never pushed.
type TransferStatus string

const (
	StatusPending   TransferStatus = "PENDING"
	StatusConfirmed TransferStatus = "CONFIRMED"
	StatusRejected  TransferStatus = "REJECTED"
)

// Adapter is the per-backend capability interface. All amounts are native
// micros of the backend's unit.
type Adapter interface {
	// BackendID returns the identifier this adapter serves.
	BackendID() string

	// GetBalance returns the confirmed balance of an address. Fails with
	// domain.ErrAdapterUnavailable on transient network errors (retryable)
	// and domain.ErrInvalidAddress on permanently bad addresses.
	GetBalance(ctx context.Context, address string) (int64, error)

	// EstimateFee quotes the fee for moving amountMicros to toAddress.
	EstimateFee(ctx context.Context, amountMicros int64, toAddress string) (int64, error)

	// SubmitTransfer hands a signed transfer to the backend and returns its
	// transaction id. It must be safe to call at most once per logical
	// intent; the coordinator guarantees this by never re-submitting once a
	// backend tx id has been recorded.
	SubmitTransfer(ctx context.Context, fromAddress, toAddress string, amountMicros int64) (string, error)

	// GetTransferStatus reports the current status of a submitted transfer.
	GetTransferStatus(ctx context.Context, backendTxID string) (TransferStatus, error)

	// Normalize converts a native amount to fiat-equivalent micros using the
	// backend's current rate.
	Normalize(ctx context.Context, nativeMicros int64) (int64, error)
}

// Depositor is an optional adapter capability used by the bridge to credit a
// destination backend during a cross-chain transfer. Backends that cannot
// mint or accept external deposits simply do not implement it.
type Depositor interface {
	Deposit(ctx context.Context, toAddress string, amountMicros int64) (string, error)
}
