package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/models"
)

// SimAdapter simulates one backend in-memory: balances per address, a fee
// schedule, and submitted transfers that confirm after a configurable latency.
// It is the environment-swapped stand-in for a real chain client and the
// fixture layer for tests; fault injection covers the adapter error taxonomy.
type SimAdapter struct {
	backend   models.Backend
	signer    Signer
	normalize NormalizeFunc

	feeFlatMicros int64
	feeBps        int64
	confirmAfter  time.Duration

	mu         sync.Mutex
	balances   map[string]int64
	txs        map[string]*simTx
	balanceErr error
	submitErr  error
	rejectNext bool
}

// NormalizeFunc converts native micros to fiat-equivalent micros. Supplied by
// the rate oracle wiring so the chain package stays rate-source agnostic.
type NormalizeFunc func(ctx context.Context, nativeMicros int64) (int64, error)

type simTx struct {
	from      string
	to        string
	amount    int64
	fee       int64
	deposit   bool
	rejected  bool
	applied   bool
	confirmAt time.Time
}

// NewSimAdapter creates a simulated adapter for one backend descriptor.
func NewSimAdapter(backend models.Backend, signer Signer, normalize NormalizeFunc) *SimAdapter {
	return &SimAdapter{
		backend:       backend,
		signer:        signer,
		normalize:     normalize,
		feeFlatMicros: 1_000, // 0.001 native units
		feeBps:        10,    // 0.1%
		balances:      make(map[string]int64),
		txs:           make(map[string]*simTx),
	}
}

// WithFees overrides the flat and basis-point fee schedule.
func (s *SimAdapter) WithFees(flatMicros, bps int64) *SimAdapter {
	s.feeFlatMicros = flatMicros
	s.feeBps = bps
	return s
}

// WithConfirmLatency sets how long a submitted transfer stays PENDING.
func (s *SimAdapter) WithConfirmLatency(d time.Duration) *SimAdapter {
	s.confirmAfter = d
	return s
}

func (s *SimAdapter) BackendID() string {
	return s.backend.ID
}

// Fund seeds an address balance. Test and demo wiring only.
func (s *SimAdapter) Fund(address string, micros int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[address] += micros
}

// SetBalanceError makes GetBalance fail with err until cleared with nil.
func (s *SimAdapter) SetBalanceError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceErr = err
}

// SetSubmitError makes SubmitTransfer fail with err until cleared with nil.
func (s *SimAdapter) SetSubmitError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitErr = err
}

// RejectNextSubmit makes the next submitted transfer end REJECTED.
func (s *SimAdapter) RejectNextSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectNext = true
}

func (s *SimAdapter) GetBalance(ctx context.Context, address string) (int64, error) {
	if address == "" {
		return 0, fmt.Errorf("%w: empty address", domain.ErrInvalidAddress)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balanceErr != nil {
		return 0, s.balanceErr
	}
	return s.balances[address], nil
}

func (s *SimAdapter) EstimateFee(ctx context.Context, amountMicros int64, toAddress string) (int64, error) {
	if toAddress == "" {
		return 0, fmt.Errorf("%w: empty destination address", domain.ErrInvalidAddress)
	}
	return s.feeFlatMicros + amountMicros*s.feeBps/10_000, nil
}

func (s *SimAdapter) SubmitTransfer(ctx context.Context, fromAddress, toAddress string, amountMicros int64) (string, error) {
	if fromAddress == "" || toAddress == "" {
		return "", fmt.Errorf("%w: empty address", domain.ErrInvalidAddress)
	}

	payload := fmt.Sprintf("%s->%s:%d", fromAddress, toAddress, amountMicros)
	if _, err := s.signer.Sign(ctx, fromAddress, []byte(payload)); err != nil {
		return "", fmt.Errorf("%w: signer: %v", domain.ErrAdapterUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return "", s.submitErr
	}

	fee := s.feeFlatMicros + amountMicros*s.feeBps/10_000
	tx := &simTx{
		from:      fromAddress,
		to:        toAddress,
		amount:    amountMicros,
		fee:       fee,
		confirmAt: time.Now().Add(s.confirmAfter),
	}

	if s.rejectNext {
		s.rejectNext = false
		tx.rejected = true
	} else if s.balances[fromAddress]-s.pendingOutLocked(fromAddress) < amountMicros+fee {
		return "", fmt.Errorf("%w: insufficient confirmed funds on %s", domain.ErrAdapterRejected, s.backend.ID)
	}

	txID := fmt.Sprintf("SIM-%s-%s", s.backend.ID, uuid.NewString()[:8])
	s.txs[txID] = tx
	return txID, nil
}

func (s *SimAdapter) GetTransferStatus(ctx context.Context, backendTxID string) (TransferStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[backendTxID]
	if !ok {
		return "", fmt.Errorf("%w: unknown backend tx %s", domain.ErrAdapterRejected, backendTxID)
	}
	if tx.rejected {
		return StatusRejected, nil
	}
	if time.Now().Before(tx.confirmAt) {
		return StatusPending, nil
	}
	s.applyLocked(tx)
	return StatusConfirmed, nil
}

// Deposit credits an address directly, the capability the bridge uses for the
// destination leg of a cross-backend transfer.
func (s *SimAdapter) Deposit(ctx context.Context, toAddress string, amountMicros int64) (string, error) {
	if toAddress == "" {
		return "", fmt.Errorf("%w: empty address", domain.ErrInvalidAddress)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return "", s.submitErr
	}

	txID := fmt.Sprintf("SIM-%s-DEP-%s", s.backend.ID, uuid.NewString()[:8])
	s.txs[txID] = &simTx{
		to:        toAddress,
		amount:    amountMicros,
		deposit:   true,
		confirmAt: time.Now().Add(s.confirmAfter),
	}
	return txID, nil
}

func (s *SimAdapter) Normalize(ctx context.Context, nativeMicros int64) (int64, error) {
	return s.normalize(ctx, nativeMicros)
}

// applyLocked settles a confirmed transfer into the balance map exactly once.
func (s *SimAdapter) applyLocked(tx *simTx) {
	if tx.applied {
		return
	}
	tx.applied = true
	if !tx.deposit {
		s.balances[tx.from] -= tx.amount + tx.fee
	}
	s.balances[tx.to] += tx.amount
}

// pendingOutLocked sums submitted-but-unsettled spend for an address.
func (s *SimAdapter) pendingOutLocked(address string) int64 {
	var out int64
	for _, tx := range s.txs {
		if tx.from == address && !tx.applied && !tx.rejected && !tx.deposit {
			out += tx.amount + tx.fee
		}
	}
	return out
}
