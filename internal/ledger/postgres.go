package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/models"
)

// PostgresLedger persists transfer records in Postgres. Steps are stored as a
// JSONB column; the state check on update enforces the forward-only lattice
// at the application level, the same writer being serialized per wallet.
type PostgresLedger struct {
	db *pgxpool.Pool
}

func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const transferColumns = `request_id, state, steps, source_wallet_id, destination_wallet_id,
	amount_micros, unit, fee_micros, debit_tx_id, credit_tx_id,
	requires_manual_reconciliation, failure_reason, started_at, completed_at`

func (l *PostgresLedger) Append(ctx context.Context, rec *models.TransferRecord) error {
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	query := `INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = l.db.Exec(ctx, query,
		rec.RequestID, rec.State, steps, rec.SourceWalletID, rec.DestinationWalletID,
		rec.AmountMicros, rec.Unit, rec.FeeMicros, nullable(rec.DebitTxID), nullable(rec.CreditTxID),
		rec.RequiresManualReconciliation, nullable(rec.FailureReason), rec.StartedAt, rec.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateRequest
		}
		return fmt.Errorf("failed to append transfer record: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Update(ctx context.Context, rec *models.TransferRecord) error {
	current, err := l.Get(ctx, rec.RequestID)
	if err != nil {
		return err
	}
	if current.State != rec.State && !domain.CanTransition(current.State, rec.State) {
		return fmt.Errorf("invalid transfer state transition: %s -> %s", current.State, rec.State)
	}

	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	query := `UPDATE transfers SET
			state = $2, steps = $3, fee_micros = $4, debit_tx_id = $5, credit_tx_id = $6,
			requires_manual_reconciliation = $7, failure_reason = $8, completed_at = $9
		WHERE request_id = $1`
	tag, err := l.db.Exec(ctx, query,
		rec.RequestID, rec.State, steps, rec.FeeMicros, nullable(rec.DebitTxID), nullable(rec.CreditTxID),
		rec.RequiresManualReconciliation, nullable(rec.FailureReason), rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update transfer record: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update transfer record affected %d rows", tag.RowsAffected())
	}
	return nil
}

func (l *PostgresLedger) Get(ctx context.Context, requestID string) (*models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE request_id = $1`
	rec, err := scanTransfer(l.db.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get transfer record: %w", err)
	}
	return rec, nil
}

func (l *PostgresLedger) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE source_wallet_id = $1 OR destination_wallet_id = $1
		ORDER BY started_at DESC LIMIT $2`
	return l.list(ctx, query, walletID, normalizeLimit(limit))
}

func (l *PostgresLedger) ListInFlight(ctx context.Context, limit int) ([]models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE state NOT IN ($1, $2)
		ORDER BY started_at ASC LIMIT $3`
	return l.list(ctx, query, domain.StateCompleted, domain.StateFailed, normalizeLimit(limit))
}

func (l *PostgresLedger) ListRequiringReconciliation(ctx context.Context, limit int) ([]models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE requires_manual_reconciliation
		ORDER BY started_at DESC LIMIT $1`
	return l.list(ctx, query, normalizeLimit(limit))
}

func (l *PostgresLedger) list(ctx context.Context, query string, args ...any) ([]models.TransferRecord, error) {
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer records: %w", err)
	}
	defer rows.Close()

	var out []models.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, nil
}

func scanTransfer(row pgx.Row) (*models.TransferRecord, error) {
	var (
		rec           models.TransferRecord
		steps         []byte
		debitTxID     *string
		creditTxID    *string
		failureReason *string
	)
	err := row.Scan(&rec.RequestID, &rec.State, &steps, &rec.SourceWalletID, &rec.DestinationWalletID,
		&rec.AmountMicros, &rec.Unit, &rec.FeeMicros, &debitTxID, &creditTxID,
		&rec.RequiresManualReconciliation, &failureReason, &rec.StartedAt, &rec.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &rec.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode steps: %w", err)
		}
	}
	if debitTxID != nil {
		rec.DebitTxID = *debitTxID
	}
	if creditTxID != nil {
		rec.CreditTxID = *creditTxID
	}
	if failureReason != nil {
		rec.FailureReason = *failureReason
	}
	return &rec, nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}
