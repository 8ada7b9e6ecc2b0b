package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/models"
)

// PostgresStore persists wallets in Postgres.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, w *models.Wallet) error {
	query := `INSERT INTO wallets (id, owner_avatar_id, backend_id, address, display_name, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING created_at`
	err := s.db.QueryRow(ctx, query, w.ID, w.OwnerAvatarID, w.BackendID, w.Address, w.DisplayName).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	w := &models.Wallet{}
	query := `SELECT id, owner_avatar_id, backend_id, address, display_name, created_at FROM wallets WHERE id = $1`
	err := s.db.QueryRow(ctx, query, id).Scan(&w.ID, &w.OwnerAvatarID, &w.BackendID, &w.Address, &w.DisplayName, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, avatarID uuid.UUID) ([]models.Wallet, error) {
	query := `
		SELECT id, owner_avatar_id, backend_id, address, display_name, created_at
		FROM wallets
		WHERE owner_avatar_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.Query(ctx, query, avatarID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(&w.ID, &w.OwnerAvatarID, &w.BackendID, &w.Address, &w.DisplayName, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}
