package models

import (
	"time"

	"github.com/google/uuid"
)

// BackendKind distinguishes crypto chains from fiat rails.
const (
	BackendKindCrypto = "CRYPTO"
	BackendKindFiat   = "FIAT"
)

// Backend describes one blockchain network or fiat rail a wallet can be
// bound to. Registered once at startup; read-only afterward.
type Backend struct {
	ID                  string `json:"backend_id"`
	Kind                string `json:"kind"`
	NativeUnit          string `json:"native_unit"`
	Enabled             bool   `json:"enabled"`
	SupportsReplication bool   `json:"supports_replication"`
}

// Wallet is the durable record of a user-owned wallet, bound to exactly one
// backend. The backend binding is immutable after creation. Balance is never
// stored on the wallet; it is fetched fresh or served from a bounded cache.
type Wallet struct {
	ID            uuid.UUID `json:"id"`
	OwnerAvatarID uuid.UUID `json:"owner_avatar_id"`
	BackendID     string    `json:"backend_id"`
	Address       string    `json:"address"`
	DisplayName   string    `json:"display_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// BalanceSnapshot is a derived, cache-resident view of a wallet's balance.
// IsStale is true once AsOf exceeds the freshness window, or when the value
// is a last-known fallback after an adapter failure.
type BalanceSnapshot struct {
	WalletID         uuid.UUID `json:"wallet_id"`
	BackendID        string    `json:"backend_id"`
	NativeMicros     int64     `json:"native_micros"`
	NativeUnit       string    `json:"native_unit"`
	NormalizedMicros int64     `json:"normalized_micros"`
	AsOf             time.Time `json:"as_of"`
	IsStale          bool      `json:"is_stale"`
}

// TransferRequest is the client-facing request for a value movement.
// RequestID is the client-supplied idempotency key: replays with the same
// RequestID must not double-spend.
type TransferRequest struct {
	RequestID           string    `json:"request_id"`
	SourceWalletID      uuid.UUID `json:"source_wallet_id"`
	DestinationWalletID uuid.UUID `json:"destination_wallet_id"`
	AmountMicros        int64     `json:"amount_micros"`
	Unit                string    `json:"unit"`
	CreatedAt           time.Time `json:"created_at"`
}

// StepRecord captures one saga step outcome inside a TransferRecord.
type StepRecord struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	BackendTxID string     `json:"backend_tx_id,omitempty"`
	Detail      string     `json:"detail,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TransferRecord is the append-only ledger entry for one transfer attempt.
// State only advances through the lattice in the domain package.
type TransferRecord struct {
	RequestID           string       `json:"request_id"`
	State               string       `json:"state"`
	Steps               []StepRecord `json:"steps"`
	SourceWalletID      uuid.UUID    `json:"source_wallet_id"`
	DestinationWalletID uuid.UUID    `json:"destination_wallet_id"`
	AmountMicros        int64        `json:"amount_micros"`
	Unit                string       `json:"unit"`
	FeeMicros           int64        `json:"fee_micros"`
	DebitTxID           string       `json:"debit_tx_id,omitempty"`
	CreditTxID          string       `json:"credit_tx_id,omitempty"`
	// RequiresManualReconciliation is set when compensation could not restore
	// the source balance automatically. Surfaced to operators, never retried.
	RequiresManualReconciliation bool       `json:"requires_manual_reconciliation"`
	FailureReason                string     `json:"failure_reason,omitempty"`
	StartedAt                    time.Time  `json:"started_at"`
	CompletedAt                  *time.Time `json:"completed_at,omitempty"`
}

// BackendBreakdown is one per-backend line of a portfolio snapshot.
type BackendBreakdown struct {
	BackendID        string `json:"backend_id"`
	NativeUnit       string `json:"native_unit"`
	NativeMicros     int64  `json:"native_micros"`
	NormalizedMicros int64  `json:"normalized_micros"`
	WalletCount      int    `json:"wallet_count"`
	Stale            bool   `json:"stale"`
}

// PortfolioSnapshot aggregates an avatar's wallets into a single
// fiat-equivalent view. A single unreachable backend degrades its wallets to
// stale last-known values instead of failing the whole computation.
type PortfolioSnapshot struct {
	AvatarID         uuid.UUID          `json:"avatar_id"`
	TotalValueMicros int64              `json:"total_value_micros"`
	ValueUnit        string             `json:"value_unit"`
	PerBackend       []BackendBreakdown `json:"per_backend"`
	WalletCount      int                `json:"wallet_count"`
	StaleWalletCount int                `json:"stale_wallet_count"`
	ComputedAt       time.Time          `json:"computed_at"`
}
