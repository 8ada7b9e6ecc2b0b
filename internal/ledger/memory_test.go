package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(requestID string, state string, startedAt time.Time) *models.TransferRecord {
	return &models.TransferRecord{
		RequestID:           requestID,
		State:               state,
		SourceWalletID:      uuid.New(),
		DestinationWalletID: uuid.New(),
		AmountMicros:        1_000_000,
		Unit:                "ETH",
		StartedAt:           startedAt,
	}
}

func TestAppendRejectsDuplicateRequestID(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	rec := newRecord("req-1", domain.StatePending, time.Now())

	require.NoError(t, l.Append(ctx, rec))
	assert.ErrorIs(t, l.Append(ctx, rec), domain.ErrDuplicateRequest)
}

func TestUpdateEnforcesStateLattice(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	rec := newRecord("req-1", domain.StatePending, time.Now())
	require.NoError(t, l.Append(ctx, rec))

	rec.State = domain.StateCompleted
	assert.Error(t, l.Update(ctx, rec), "PENDING cannot jump straight to COMPLETED")

	rec.State = domain.StateDebitConfirmed
	require.NoError(t, l.Update(ctx, rec))
	rec.State = domain.StateCompleted
	require.NoError(t, l.Update(ctx, rec))

	rec.State = domain.StateFailed
	assert.Error(t, l.Update(ctx, rec), "terminal states never change")
}

func TestUpdateUnknownRecord(t *testing.T) {
	l := NewMemoryLedger()
	rec := newRecord("ghost", domain.StatePending, time.Now())
	assert.ErrorIs(t, l.Update(context.Background(), rec), domain.ErrTransferNotFound)
}

func TestGetReturnsIsolatedCopies(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	rec := newRecord("req-1", domain.StatePending, time.Now())
	rec.Steps = []models.StepRecord{{Name: domain.StepValidate, Status: domain.StepStatusConfirmed}}
	require.NoError(t, l.Append(ctx, rec))

	got, err := l.Get(ctx, "req-1")
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the stored record.
	got.Steps[0].Status = domain.StepStatusRejected
	got.State = domain.StateFailed

	again, err := l.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, again.State)
	assert.Equal(t, domain.StepStatusConfirmed, again.Steps[0].Status)

	_, err = l.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestListByWalletNewestFirst(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	walletID := uuid.New()

	older := newRecord("req-old", domain.StateCompleted, time.Now().Add(-time.Hour))
	older.SourceWalletID = walletID
	newer := newRecord("req-new", domain.StatePending, time.Now())
	newer.DestinationWalletID = walletID
	unrelated := newRecord("req-other", domain.StatePending, time.Now())

	require.NoError(t, l.Append(ctx, older))
	require.NoError(t, l.Append(ctx, newer))
	require.NoError(t, l.Append(ctx, unrelated))

	got, err := l.ListByWallet(ctx, walletID, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "req-new", got[0].RequestID)
	assert.Equal(t, "req-old", got[1].RequestID)

	limited, err := l.ListByWallet(ctx, walletID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "req-new", limited[0].RequestID)
}

func TestListInFlightOldestFirst(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	pending := newRecord("req-pending", domain.StatePending, time.Now().Add(-time.Hour))
	debited := newRecord("req-debited", domain.StateDebitConfirmed, time.Now())
	done := newRecord("req-done", domain.StateCompleted, time.Now())
	failed := newRecord("req-failed", domain.StateFailed, time.Now())

	for _, rec := range []*models.TransferRecord{pending, debited, done, failed} {
		require.NoError(t, l.Append(ctx, rec))
	}

	got, err := l.ListInFlight(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "req-pending", got[0].RequestID)
	assert.Equal(t, "req-debited", got[1].RequestID)
}

func TestListRequiringReconciliation(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	manual := newRecord("req-manual", domain.StateFailed, time.Now())
	manual.RequiresManualReconciliation = true
	clean := newRecord("req-clean", domain.StateFailed, time.Now())

	require.NoError(t, l.Append(ctx, manual))
	require.NoError(t, l.Append(ctx, clean))

	got, err := l.ListRequiringReconciliation(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "req-manual", got[0].RequestID)
}
