package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/bridge"
	"github.com/omniwallet/omniwallet/internal/chain"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/ledger"
	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/omniwallet/omniwallet/internal/observability"
	"github.com/omniwallet/omniwallet/internal/rates"
	"github.com/omniwallet/omniwallet/internal/wallet"
	"go.uber.org/zap"
)

// Coordinator executes value movements between wallets as a multi-step saga
// with compensation. Same-backend transfers settle atomically on the backend;
// cross-backend transfers debit into a bridge escrow, credit through the
// bridge, and reverse the debit on credit failure. Every step outcome is
// recorded in the append-only ledger, which also provides idempotency on the
// client-supplied request id.
type Coordinator struct {
	wallets  wallet.Store
	ledger   ledger.Ledger
	registry *chain.Registry
	bridge   bridge.Bridge
	oracle   rates.Oracle
	agg      *Aggregator

	locks    *walletLocks
	reserved *reservations

	pollInitial time.Duration
	pollMax     time.Duration
	waitBudget  time.Duration

	jobs     chan string
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  map[string]struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

// CoordinatorOption tunes coordinator behavior.
type CoordinatorOption func(*Coordinator)

// WithConfirmBackoff sets the confirmation polling schedule and total wait
// budget. Defaults: 2s initial, 60s ceiling, 30m budget.
func WithConfirmBackoff(initial, max, budget time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if initial > 0 {
			c.pollInitial = initial
		}
		if max > 0 {
			c.pollMax = max
		}
		if budget > 0 {
			c.waitBudget = budget
		}
	}
}

// WithQueueDepth sets the buffered execution queue size.
func WithQueueDepth(depth int) CoordinatorOption {
	return func(c *Coordinator) {
		if depth > 0 {
			c.jobs = make(chan string, depth)
		}
	}
}

// NewCoordinator wires the transfer saga executor.
func NewCoordinator(
	wallets wallet.Store,
	lg ledger.Ledger,
	registry *chain.Registry,
	br bridge.Bridge,
	oracle rates.Oracle,
	agg *Aggregator,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		wallets:     wallets,
		ledger:      lg,
		registry:    registry,
		bridge:      br,
		oracle:      oracle,
		agg:         agg,
		locks:       newWalletLocks(),
		reserved:    newReservations(),
		pollInitial: 2 * time.Second,
		pollMax:     60 * time.Second,
		waitBudget:  30 * time.Minute,
		jobs:        make(chan string, 256),
		running:     make(map[string]struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the execution worker pool.
func (c *Coordinator) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-c.stopped:
					return
				case requestID := <-c.jobs:
					c.drive(ctx, requestID)
				}
			}
		}()
	}
}

// Stop signals the worker pool to exit and waits for in-progress sagas.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopped) })
	c.wg.Wait()
}

// Submit validates a transfer request and, if accepted, records it as PENDING
// and queues it for asynchronous execution. Idempotent on the request id: a
// replay in any state returns the existing record without re-executing.
// Validation failures surface synchronously and leave no ledger entry.
func (c *Coordinator) Submit(ctx context.Context, req models.TransferRequest, requester uuid.UUID) (*models.TransferRecord, error) {
	if existing, err := c.ledger.Get(ctx, req.RequestID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrTransferNotFound) {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	if strings.TrimSpace(req.RequestID) == "" {
		return nil, fmt.Errorf("%w: request_id is required", domain.ErrInvalidRequest)
	}
	if req.AmountMicros <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidRequest)
	}
	if req.SourceWalletID == req.DestinationWalletID {
		return nil, domain.ErrSameWallet
	}

	source, err := c.wallets.Get(ctx, req.SourceWalletID)
	if err != nil {
		return nil, fmt.Errorf("%w: source wallet", domain.ErrInvalidRequest)
	}
	if source.OwnerAvatarID != requester {
		return nil, domain.ErrNotOwner
	}
	dest, err := c.wallets.Get(ctx, req.DestinationWalletID)
	if err != nil {
		return nil, fmt.Errorf("%w: destination wallet", domain.ErrInvalidRequest)
	}

	sourceBackend, err := c.registry.Backend(source.BackendID)
	if err != nil {
		return nil, err
	}
	if req.Unit != "" && req.Unit != sourceBackend.NativeUnit {
		return nil, fmt.Errorf("%w: unit %s does not match source backend unit %s",
			domain.ErrInvalidRequest, req.Unit, sourceBackend.NativeUnit)
	}

	sourceAdapter, err := c.registry.Resolve(source.BackendID)
	if err != nil {
		return nil, err
	}
	if _, err := c.registry.Resolve(dest.BackendID); err != nil {
		return nil, err
	}

	// Balance check and reservation are serialized per source wallet so two
	// concurrent requests cannot both pass on the same funds.
	unlock := c.locks.lock(source.ID)
	defer unlock()

	// Second idempotency check under the lock: a replay that raced the
	// original past the first lookup is caught here before it can reserve.
	if existing, err := c.ledger.Get(ctx, req.RequestID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrTransferNotFound) {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	fee, err := sourceAdapter.EstimateFee(ctx, req.AmountMicros, c.debitDestinationAddress(source, dest))
	if err != nil {
		return nil, fmt.Errorf("estimate fee: %w", err)
	}
	balance, err := sourceAdapter.GetBalance(ctx, source.Address)
	if err != nil {
		return nil, fmt.Errorf("source balance: %w", err)
	}
	if balance-c.reserved.held(source.ID) < req.AmountMicros+fee {
		return nil, domain.ErrInsufficientFunds
	}
	created := c.reserved.reserve(req.RequestID, source.ID, req.AmountMicros+fee)

	now := time.Now().UTC()
	rec := &models.TransferRecord{
		RequestID:           req.RequestID,
		State:               domain.StatePending,
		SourceWalletID:      source.ID,
		DestinationWalletID: dest.ID,
		AmountMicros:        req.AmountMicros,
		Unit:                sourceBackend.NativeUnit,
		FeeMicros:           fee,
		StartedAt:           now,
		Steps: []models.StepRecord{{
			Name:        domain.StepValidate,
			Status:      domain.StepStatusConfirmed,
			StartedAt:   now,
			CompletedAt: &now,
		}},
	}
	if err := c.ledger.Append(ctx, rec); err != nil {
		// Only the call that created the hold may free it; a duplicate must
		// not release the original's live reservation.
		if created {
			c.reserved.release(req.RequestID)
		}
		if errors.Is(err, domain.ErrDuplicateRequest) {
			return c.ledger.Get(ctx, req.RequestID)
		}
		return nil, fmt.Errorf("append transfer record: %w", err)
	}
	observability.IncrementTransferTransition(domain.StatePending)

	c.enqueue(req.RequestID)
	return rec, nil
}

// Get returns the full transfer record for a request id.
func (c *Coordinator) Get(ctx context.Context, requestID string) (*models.TransferRecord, error) {
	return c.ledger.Get(ctx, requestID)
}

// History returns ledger records touching a wallet, newest first.
func (c *Coordinator) History(ctx context.Context, walletID uuid.UUID, limit int) ([]models.TransferRecord, error) {
	return c.ledger.ListByWallet(ctx, walletID, limit)
}

// RequiringReconciliation returns failed records awaiting operator action.
func (c *Coordinator) RequiringReconciliation(ctx context.Context, limit int) ([]models.TransferRecord, error) {
	return c.ledger.ListRequiringReconciliation(ctx, limit)
}

// Cancel aborts a PENDING transfer before its debit has been handed to the
// backend. Once a backend tx id is recorded, the saga is seen through to a
// terminal state instead.
func (c *Coordinator) Cancel(ctx context.Context, requestID string, requester uuid.UUID) (*models.TransferRecord, error) {
	rec, err := c.ledger.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	source, err := c.wallets.Get(ctx, rec.SourceWalletID)
	if err != nil {
		return nil, err
	}
	if source.OwnerAvatarID != requester {
		return nil, domain.ErrNotOwner
	}

	unlock := c.locks.lock(rec.SourceWalletID)
	defer unlock()

	rec, err = c.ledger.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if rec.State != domain.StatePending || rec.DebitTxID != "" {
		return nil, domain.ErrNotCancellable
	}

	c.appendStepDone(rec, domain.StepCancel, domain.StepStatusConfirmed, "", "cancelled by owner")
	if err := c.toFailed(ctx, rec, "cancelled before debit", false); err != nil {
		return nil, err
	}
	c.reserved.release(rec.RequestID)
	return rec, nil
}

// Resume re-queues non-terminal ledger records, typically after a restart.
// Records already being driven by this process are skipped.
func (c *Coordinator) Resume(ctx context.Context, limit int) (int, error) {
	inflight, err := c.ledger.ListInFlight(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list in-flight transfers: %w", err)
	}

	queued := 0
	for _, rec := range inflight {
		c.mu.Lock()
		_, busy := c.running[rec.RequestID]
		c.mu.Unlock()
		if busy {
			continue
		}
		// Reservations are process-local; restore the hold for records whose
		// debit has not been handed to the backend yet.
		if rec.State == domain.StatePending && rec.DebitTxID == "" {
			c.reserved.reserve(rec.RequestID, rec.SourceWalletID, rec.AmountMicros+rec.FeeMicros)
		}
		c.enqueue(rec.RequestID)
		queued++
	}
	return queued, nil
}

func (c *Coordinator) enqueue(requestID string) {
	select {
	case c.jobs <- requestID:
	default:
		// Queue full; the resume worker re-queues it on its next pass.
		zap.L().Warn("transfer queue full, deferring to resume", zap.String("request_id", requestID))
	}
}

// drive advances a saga from whatever state the ledger holds to a terminal
// state. Safe to call again for the same record after a crash.
func (c *Coordinator) drive(ctx context.Context, requestID string) {
	c.mu.Lock()
	if _, busy := c.running[requestID]; busy {
		c.mu.Unlock()
		return
	}
	c.running[requestID] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.running, requestID)
		c.mu.Unlock()
	}()

	rec, err := c.ledger.Get(ctx, requestID)
	if err != nil {
		zap.L().Error("transfer record load failed", zap.Error(err), zap.String("request_id", requestID))
		return
	}

	switch rec.State {
	case domain.StatePending:
		if !c.runDebit(ctx, rec) {
			return
		}
		c.runCredit(ctx, rec)
	case domain.StateDebitConfirmed:
		c.runCredit(ctx, rec)
	case domain.StateCreditConfirmed:
		c.finalize(ctx, rec)
	case domain.StateCompensatingDebit:
		c.runCompensation(ctx, rec)
	default:
		// Terminal; nothing to drive.
	}
}

// runDebit executes validation-through-debit-confirmation under the source
// wallet lock. Returns true when the debit confirmed and the credit phase
// should run.
func (c *Coordinator) runDebit(ctx context.Context, rec *models.TransferRecord) bool {
	unlock := c.locks.lock(rec.SourceWalletID)
	defer unlock()
	defer c.reserved.release(rec.RequestID)

	// Reload under the lock; a concurrent cancel may have won.
	fresh, err := c.ledger.Get(ctx, rec.RequestID)
	if err != nil {
		zap.L().Error("transfer reload failed", zap.Error(err), zap.String("request_id", rec.RequestID))
		return false
	}
	*rec = *fresh
	if rec.State != domain.StatePending {
		return false
	}

	source, dest, sourceAdapter, err := c.resolveParties(ctx, rec)
	if err != nil {
		c.failWith(ctx, rec, err.Error(), false)
		return false
	}

	if rec.DebitTxID == "" {
		toAddress := c.debitDestinationAddress(source, dest)
		c.appendStepStarted(rec, domain.StepDebit)
		txID, err := sourceAdapter.SubmitTransfer(ctx, source.Address, toAddress, rec.AmountMicros)
		if err != nil {
			observability.IncrementAdapterCall(source.BackendID, "submit_transfer", "error")
			c.completeStep(rec, domain.StepDebit, domain.StepStatusRejected, "", err.Error())
			c.failWith(ctx, rec, fmt.Sprintf("debit submission failed: %v", err), false)
			return false
		}
		observability.IncrementAdapterCall(source.BackendID, "submit_transfer", "ok")
		rec.DebitTxID = txID
		if err := c.ledger.Update(ctx, rec); err != nil {
			// The backend tx is out; without the recorded tx id we can no
			// longer guarantee single submission. Operator territory.
			zap.L().Error("failed to record debit tx id", zap.Error(err), zap.String("request_id", rec.RequestID))
			c.failWith(ctx, rec, "debit submitted but tx id could not be recorded", true)
			return false
		}
	}

	status, err := c.awaitStatus(ctx, func(pollCtx context.Context) (chain.TransferStatus, error) {
		return sourceAdapter.GetTransferStatus(pollCtx, rec.DebitTxID)
	})
	switch {
	case isContextDone(err):
		// Driver shutdown, not a confirmation outcome; the record stays
		// in-flight for the resume worker.
		return false
	case err != nil:
		// Wait budget exhausted: the debit may still land.
		c.completeStep(rec, domain.StepDebit, domain.StepStatusTimedOut, rec.DebitTxID, err.Error())
		c.failWith(ctx, rec, fmt.Sprintf("debit confirmation: %v", err), true)
		return false
	case status == chain.StatusRejected:
		// Debit never left the source; no compensation needed.
		c.completeStep(rec, domain.StepDebit, domain.StepStatusRejected, rec.DebitTxID, "rejected by backend")
		c.failWith(ctx, rec, "debit rejected by backend", false)
		return false
	}

	c.completeStep(rec, domain.StepDebit, domain.StepStatusConfirmed, rec.DebitTxID, "")
	rec.State = domain.StateDebitConfirmed
	if err := c.ledger.Update(ctx, rec); err != nil {
		zap.L().Error("failed to persist debit confirmation", zap.Error(err), zap.String("request_id", rec.RequestID))
		return false
	}
	observability.IncrementTransferTransition(domain.StateDebitConfirmed)
	c.agg.Invalidate(ctx, rec.SourceWalletID)
	return true
}

// runCredit settles the destination side. The source lock is not held here:
// the source balance is no longer touched except by compensation, which
// reverses into the wallet rather than out of it.
func (c *Coordinator) runCredit(ctx context.Context, rec *models.TransferRecord) {
	source, dest, _, err := c.resolveParties(ctx, rec)
	if err != nil {
		c.failWith(ctx, rec, err.Error(), true)
		return
	}

	// Same backend: the adapter transfer already credited the destination
	// atomically with the debit.
	if source.BackendID == dest.BackendID {
		c.finalize(ctx, rec)
		return
	}

	destBackend, err := c.registry.Backend(dest.BackendID)
	if err != nil {
		c.startCompensation(ctx, rec, err.Error())
		return
	}

	if rec.CreditTxID == "" {
		rate, err := c.oracle.Rate(ctx, rec.Unit, destBackend.NativeUnit)
		if err != nil {
			c.startCompensation(ctx, rec, fmt.Sprintf("rate lookup failed: %v", err))
			return
		}
		creditMicros := domain.NewAmount(rec.AmountMicros, rec.Unit).Convert(destBackend.NativeUnit, rate).Micros

		c.appendStepStarted(rec, domain.StepCredit)
		txID, err := c.bridge.Credit(ctx, dest.BackendID, dest.Address, creditMicros)
		if err != nil {
			c.completeStep(rec, domain.StepCredit, domain.StepStatusRejected, "", err.Error())
			c.startCompensation(ctx, rec, fmt.Sprintf("bridge credit failed: %v", err))
			return
		}
		rec.CreditTxID = txID
		if err := c.ledger.Update(ctx, rec); err != nil {
			zap.L().Error("failed to record credit tx id", zap.Error(err), zap.String("request_id", rec.RequestID))
			return
		}
	}

	status, err := c.awaitStatus(ctx, func(pollCtx context.Context) (chain.TransferStatus, error) {
		return c.bridge.Status(pollCtx, dest.BackendID, rec.CreditTxID)
	})
	switch {
	case isContextDone(err):
		return
	case err != nil:
		c.completeStep(rec, domain.StepCredit, domain.StepStatusTimedOut, rec.CreditTxID, err.Error())
		c.startCompensation(ctx, rec, fmt.Sprintf("credit confirmation: %v", err))
		return
	case status == chain.StatusRejected:
		c.completeStep(rec, domain.StepCredit, domain.StepStatusRejected, rec.CreditTxID, "rejected by bridge")
		c.startCompensation(ctx, rec, "credit rejected by bridge")
		return
	}

	c.completeStep(rec, domain.StepCredit, domain.StepStatusConfirmed, rec.CreditTxID, "")
	rec.State = domain.StateCreditConfirmed
	if err := c.ledger.Update(ctx, rec); err != nil {
		zap.L().Error("failed to persist credit confirmation", zap.Error(err), zap.String("request_id", rec.RequestID))
		return
	}
	observability.IncrementTransferTransition(domain.StateCreditConfirmed)
	c.finalize(ctx, rec)
}

// startCompensation reverses a confirmed debit after the credit side failed.
// Best effort: a reversal that cannot be confirmed marks the record for
// manual reconciliation rather than retrying forever.
func (c *Coordinator) startCompensation(ctx context.Context, rec *models.TransferRecord, reason string) {
	rec.State = domain.StateCompensatingDebit
	rec.FailureReason = reason
	if err := c.ledger.Update(ctx, rec); err != nil {
		zap.L().Error("failed to enter compensation", zap.Error(err), zap.String("request_id", rec.RequestID))
		return
	}
	observability.IncrementTransferTransition(domain.StateCompensatingDebit)
	c.runCompensation(ctx, rec)
}

func (c *Coordinator) runCompensation(ctx context.Context, rec *models.TransferRecord) {
	source, err := c.wallets.Get(ctx, rec.SourceWalletID)
	if err != nil {
		c.failWith(ctx, rec, fmt.Sprintf("compensation: source wallet: %v", err), true)
		return
	}
	sourceAdapter, err := c.registry.Resolve(source.BackendID)
	if err != nil {
		c.failWith(ctx, rec, fmt.Sprintf("compensation: %v", err), true)
		return
	}

	reversalTxID := compensationTxID(rec)
	if reversalTxID == "" {
		escrow := c.bridge.EscrowAddress(source.BackendID)
		reverseFee, err := sourceAdapter.EstimateFee(ctx, rec.AmountMicros, source.Address)
		if err != nil {
			c.failWith(ctx, rec, fmt.Sprintf("compensation fee estimate failed: %v", err), true)
			return
		}
		reversalMicros := rec.AmountMicros - reverseFee
		if reversalMicros <= 0 {
			c.failWith(ctx, rec, "compensation amount not viable after fees", true)
			return
		}

		c.appendStepStarted(rec, domain.StepCompensate)
		txID, err := sourceAdapter.SubmitTransfer(ctx, escrow, source.Address, reversalMicros)
		if err != nil {
			c.completeStep(rec, domain.StepCompensate, domain.StepStatusRejected, "", err.Error())
			c.failWith(ctx, rec, fmt.Sprintf("compensation submission failed: %v", err), true)
			return
		}
		reversalTxID = txID
		c.completeStepTx(rec, domain.StepCompensate, txID)
		if err := c.ledger.Update(ctx, rec); err != nil {
			zap.L().Error("failed to record compensation tx id", zap.Error(err), zap.String("request_id", rec.RequestID))
			return
		}
	}

	status, err := c.awaitStatus(ctx, func(pollCtx context.Context) (chain.TransferStatus, error) {
		return sourceAdapter.GetTransferStatus(pollCtx, reversalTxID)
	})
	switch {
	case isContextDone(err):
		return
	case err != nil:
		c.completeStep(rec, domain.StepCompensate, domain.StepStatusTimedOut, reversalTxID, err.Error())
		c.failWith(ctx, rec, fmt.Sprintf("compensation confirmation: %v", err), true)
		return
	case status == chain.StatusRejected:
		c.completeStep(rec, domain.StepCompensate, domain.StepStatusRejected, reversalTxID, "reversal rejected")
		c.failWith(ctx, rec, "compensation rejected by backend", true)
		return
	}

	// Reversal landed; the source balance is restored within fee tolerance.
	c.completeStep(rec, domain.StepCompensate, domain.StepStatusConfirmed, reversalTxID, "")
	c.failWith(ctx, rec, rec.FailureReason, false)
}

func (c *Coordinator) finalize(ctx context.Context, rec *models.TransferRecord) {
	now := time.Now().UTC()
	rec.State = domain.StateCompleted
	rec.CompletedAt = &now
	if err := c.ledger.Update(ctx, rec); err != nil {
		zap.L().Error("failed to finalize transfer", zap.Error(err), zap.String("request_id", rec.RequestID))
		return
	}
	observability.IncrementTransferTransition(domain.StateCompleted)
	c.agg.Invalidate(ctx, rec.SourceWalletID, rec.DestinationWalletID)
	zap.L().Info("transfer completed",
		zap.String("request_id", rec.RequestID),
		zap.Int64("amount_micros", rec.AmountMicros),
		zap.String("unit", rec.Unit),
	)
}

// failWith moves a record to FAILED. manual marks it for operator
// reconciliation: value may be stranded between backends.
func (c *Coordinator) failWith(ctx context.Context, rec *models.TransferRecord, reason string, manual bool) {
	c.reserved.release(rec.RequestID)
	if err := c.toFailed(ctx, rec, reason, manual); err != nil {
		zap.L().Error("failed to persist transfer failure", zap.Error(err), zap.String("request_id", rec.RequestID))
		return
	}
	if manual {
		zap.L().Warn("transfer requires manual reconciliation",
			zap.String("request_id", rec.RequestID),
			zap.String("reason", reason),
		)
	}
}

func (c *Coordinator) toFailed(ctx context.Context, rec *models.TransferRecord, reason string, manual bool) error {
	now := time.Now().UTC()
	rec.State = domain.StateFailed
	rec.FailureReason = reason
	rec.RequiresManualReconciliation = manual
	rec.CompletedAt = &now
	if err := c.ledger.Update(ctx, rec); err != nil {
		return err
	}
	observability.IncrementTransferTransition(domain.StateFailed)
	c.agg.Invalidate(ctx, rec.SourceWalletID, rec.DestinationWalletID)
	return nil
}

// isContextDone reports whether a confirmation wait ended because the caller
// context was cancelled rather than because the wait budget ran out.
func isContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// awaitStatus polls a status function until it reaches a terminal value,
// treating transient adapter failures as retryable within the wait budget.
func (c *Coordinator) awaitStatus(ctx context.Context, poll func(context.Context) (chain.TransferStatus, error)) (chain.TransferStatus, error) {
	var last chain.TransferStatus
	err := pollUntil(ctx, c.pollInitial, c.pollMax, c.waitBudget, func(pollCtx context.Context) (bool, error) {
		status, err := poll(pollCtx)
		if err != nil {
			if errors.Is(err, domain.ErrAdapterUnavailable) {
				return false, nil
			}
			return false, err
		}
		last = status
		return status != chain.StatusPending, nil
	})
	if err != nil {
		return last, err
	}
	return last, nil
}

func (c *Coordinator) resolveParties(ctx context.Context, rec *models.TransferRecord) (*models.Wallet, *models.Wallet, chain.Adapter, error) {
	source, err := c.wallets.Get(ctx, rec.SourceWalletID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("source wallet: %w", err)
	}
	dest, err := c.wallets.Get(ctx, rec.DestinationWalletID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("destination wallet: %w", err)
	}
	adapter, err := c.registry.Resolve(source.BackendID)
	if err != nil {
		return nil, nil, nil, err
	}
	return source, dest, adapter, nil
}

// debitDestinationAddress is where the source debit is sent: the destination
// wallet for same-backend transfers, the bridge escrow otherwise.
func (c *Coordinator) debitDestinationAddress(source, dest *models.Wallet) string {
	if source.BackendID == dest.BackendID {
		return dest.Address
	}
	return c.bridge.EscrowAddress(source.BackendID)
}

func (c *Coordinator) appendStepStarted(rec *models.TransferRecord, name string) {
	for i := range rec.Steps {
		if rec.Steps[i].Name == name && rec.Steps[i].CompletedAt == nil {
			return
		}
	}
	rec.Steps = append(rec.Steps, models.StepRecord{
		Name:      name,
		Status:    domain.StepStatusStarted,
		StartedAt: time.Now().UTC(),
	})
}

func (c *Coordinator) appendStepDone(rec *models.TransferRecord, name, status, txID, detail string) {
	now := time.Now().UTC()
	rec.Steps = append(rec.Steps, models.StepRecord{
		Name:        name,
		Status:      status,
		BackendTxID: txID,
		Detail:      detail,
		StartedAt:   now,
		CompletedAt: &now,
	})
}

// completeStep closes the most recent open step with the given name.
func (c *Coordinator) completeStep(rec *models.TransferRecord, name, status, txID, detail string) {
	now := time.Now().UTC()
	for i := len(rec.Steps) - 1; i >= 0; i-- {
		if rec.Steps[i].Name == name {
			rec.Steps[i].Status = status
			if txID != "" {
				rec.Steps[i].BackendTxID = txID
			}
			if detail != "" {
				rec.Steps[i].Detail = detail
			}
			rec.Steps[i].CompletedAt = &now
			return
		}
	}
	c.appendStepDone(rec, name, status, txID, detail)
}

// completeStepTx records the backend tx id on an open step without closing it.
func (c *Coordinator) completeStepTx(rec *models.TransferRecord, name, txID string) {
	for i := len(rec.Steps) - 1; i >= 0; i-- {
		if rec.Steps[i].Name == name {
			rec.Steps[i].BackendTxID = txID
			return
		}
	}
}

// compensationTxID returns the reversal tx id recorded on the compensate
// step, if any, so re-driving after a crash never re-submits the reversal.
func compensationTxID(rec *models.TransferRecord) string {
	for i := len(rec.Steps) - 1; i >= 0; i-- {
		if rec.Steps[i].Name == domain.StepCompensate && rec.Steps[i].BackendTxID != "" {
			return rec.Steps[i].BackendTxID
		}
	}
	return ""
}
