package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/models"
)

// MemoryLedger is the in-memory ledger used in tests and demo mode.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]models.TransferRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]models.TransferRecord)}
}

func clone(rec models.TransferRecord) models.TransferRecord {
	out := rec
	out.Steps = make([]models.StepRecord, len(rec.Steps))
	copy(out.Steps, rec.Steps)
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

func (l *MemoryLedger) Append(ctx context.Context, rec *models.TransferRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[rec.RequestID]; exists {
		return domain.ErrDuplicateRequest
	}
	l.records[rec.RequestID] = clone(*rec)
	return nil
}

func (l *MemoryLedger) Update(ctx context.Context, rec *models.TransferRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, exists := l.records[rec.RequestID]
	if !exists {
		return domain.ErrTransferNotFound
	}
	if current.State != rec.State && !domain.CanTransition(current.State, rec.State) {
		return fmt.Errorf("invalid transfer state transition: %s -> %s", current.State, rec.State)
	}
	l.records[rec.RequestID] = clone(*rec)
	return nil
}

func (l *MemoryLedger) Get(ctx context.Context, requestID string) (*models.TransferRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[requestID]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	out := clone(rec)
	return &out, nil
}

func (l *MemoryLedger) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]models.TransferRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.TransferRecord
	for _, rec := range l.records {
		if rec.SourceWalletID == walletID || rec.DestinationWalletID == walletID {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return truncate(out, limit), nil
}

func (l *MemoryLedger) ListInFlight(ctx context.Context, limit int) ([]models.TransferRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.TransferRecord
	for _, rec := range l.records {
		if !domain.IsTerminalState(rec.State) {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return truncate(out, limit), nil
}

func (l *MemoryLedger) ListRequiringReconciliation(ctx context.Context, limit int) ([]models.TransferRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.TransferRecord
	for _, rec := range l.records {
		if rec.RequiresManualReconciliation {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return truncate(out, limit), nil
}

func truncate(recs []models.TransferRecord, limit int) []models.TransferRecord {
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}
