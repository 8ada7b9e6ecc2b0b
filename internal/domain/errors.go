package domain

import "errors"

// Error taxonomy. Validation errors surface synchronously to the caller and
// are never written to the ledger; everything after a record exists is
// recorded in the ledger and surfaced by polling.
var (
	// ErrInvalidRequest marks a malformed request. Client error, not retried.
	ErrInvalidRequest = errors.New("invalid transfer request")

	// ErrSameWallet is returned when source and destination are the same wallet.
	ErrSameWallet = errors.New("source and destination wallet must differ")

	// ErrInsufficientFunds is returned when the estimated balance (including
	// fee and outstanding reservations) cannot cover the transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnknownBackend marks a backend that is not registered or not enabled.
	// Configuration error, not retried.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrAdapterUnavailable marks a transient backend failure. Retried with
	// backoff up to a budget.
	ErrAdapterUnavailable = errors.New("backend adapter unavailable")

	// ErrAdapterRejected marks a terminal rejection of a submitted operation.
	ErrAdapterRejected = errors.New("backend adapter rejected operation")

	// ErrInvalidAddress marks a permanently unusable address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNotCancellable is returned when cancellation is requested after the
	// debit has already been handed to the backend.
	ErrNotCancellable = errors.New("transfer is no longer cancellable")

	// ErrWalletNotFound is returned by the wallet store.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransferNotFound is returned by the transfer ledger.
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrDuplicateRequest is returned by the ledger when a record with the
	// same request id already exists.
	ErrDuplicateRequest = errors.New("duplicate transfer request id")

	// ErrNotOwner is returned when the requester does not own the source wallet.
	ErrNotOwner = errors.New("wallet not owned by requester")
)
