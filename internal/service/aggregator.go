package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/chain"
	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/omniwallet/omniwallet/internal/observability"
	"github.com/omniwallet/omniwallet/internal/snapshot"
	"github.com/omniwallet/omniwallet/internal/wallet"
	"go.uber.org/zap"
)

// NormalizedUnit is the common value unit portfolios are reported in.
const NormalizedUnit = "USD"

// Aggregator computes portfolio snapshots across all of an avatar's wallets.
// A single unreachable backend never blocks visibility into the rest of the
// portfolio: the affected wallets degrade to stale last-known values.
type Aggregator struct {
	wallets  wallet.Store
	registry *chain.Registry
	cache    snapshot.Cache
	ttl      time.Duration
}

// NewAggregator creates an aggregator with the given freshness window.
func NewAggregator(wallets wallet.Store, registry *chain.Registry, cache snapshot.Cache, ttl time.Duration) *Aggregator {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Aggregator{
		wallets:  wallets,
		registry: registry,
		cache:    cache,
		ttl:      ttl,
	}
}

// GetPortfolio aggregates every wallet owned by the avatar into a single
// fiat-equivalent snapshot with a per-backend breakdown.
func (a *Aggregator) GetPortfolio(ctx context.Context, avatarID uuid.UUID) (*models.PortfolioSnapshot, error) {
	wallets, err := a.wallets.ListByOwner(ctx, avatarID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	out := &models.PortfolioSnapshot{
		AvatarID:    avatarID,
		ValueUnit:   NormalizedUnit,
		WalletCount: len(wallets),
		ComputedAt:  time.Now().UTC(),
	}

	byBackend := make(map[string]*models.BackendBreakdown)
	for _, w := range wallets {
		snap := a.WalletSnapshot(ctx, w)

		out.TotalValueMicros += snap.NormalizedMicros
		if snap.IsStale {
			out.StaleWalletCount++
		}

		line, ok := byBackend[w.BackendID]
		if !ok {
			line = &models.BackendBreakdown{
				BackendID:  w.BackendID,
				NativeUnit: snap.NativeUnit,
			}
			byBackend[w.BackendID] = line
		}
		line.NativeMicros += snap.NativeMicros
		line.NormalizedMicros += snap.NormalizedMicros
		line.WalletCount++
		line.Stale = line.Stale || snap.IsStale
	}

	out.PerBackend = make([]models.BackendBreakdown, 0, len(byBackend))
	for _, line := range byBackend {
		out.PerBackend = append(out.PerBackend, *line)
	}
	sort.Slice(out.PerBackend, func(i, j int) bool {
		return out.PerBackend[i].BackendID < out.PerBackend[j].BackendID
	})

	return out, nil
}

// WalletSnapshot returns the balance snapshot for one wallet: cache hit while
// fresh, otherwise an adapter fetch, falling back to the last-known value
// (marked stale) when the backend is unreachable.
func (a *Aggregator) WalletSnapshot(ctx context.Context, w models.Wallet) models.BalanceSnapshot {
	cached, err := a.cache.Get(ctx, w.ID)
	if err != nil {
		zap.L().Warn("snapshot cache read failed", zap.Error(err), zap.String("wallet_id", w.ID.String()))
	}
	now := time.Now().UTC()
	if cached != nil && now.Sub(cached.AsOf) <= a.ttl {
		cached.IsStale = false
		return *cached
	}

	fresh, err := a.fetch(ctx, w)
	if err == nil {
		if cacheErr := a.cache.Put(ctx, fresh); cacheErr != nil {
			zap.L().Warn("snapshot cache write failed", zap.Error(cacheErr), zap.String("wallet_id", w.ID.String()))
		}
		return fresh
	}

	observability.IncrementPortfolioStale(w.BackendID)
	zap.L().Warn("balance fetch failed, serving stale snapshot",
		zap.Error(err),
		zap.String("wallet_id", w.ID.String()),
		zap.String("backend_id", w.BackendID),
	)

	if cached != nil {
		cached.IsStale = true
		return *cached
	}

	backend, berr := a.registry.Backend(w.BackendID)
	unit := ""
	if berr == nil {
		unit = backend.NativeUnit
	}
	return models.BalanceSnapshot{
		WalletID:   w.ID,
		BackendID:  w.BackendID,
		NativeUnit: unit,
		AsOf:       now,
		IsStale:    true,
	}
}

// Invalidate drops the cached snapshots for the given wallets. Called by the
// coordinator whenever a transfer touches them.
func (a *Aggregator) Invalidate(ctx context.Context, walletIDs ...uuid.UUID) {
	for _, id := range walletIDs {
		if err := a.cache.Invalidate(ctx, id); err != nil {
			zap.L().Warn("snapshot invalidation failed", zap.Error(err), zap.String("wallet_id", id.String()))
		}
	}
}

func (a *Aggregator) fetch(ctx context.Context, w models.Wallet) (models.BalanceSnapshot, error) {
	adapter, err := a.registry.Resolve(w.BackendID)
	if err != nil {
		return models.BalanceSnapshot{}, err
	}
	backend, err := a.registry.Backend(w.BackendID)
	if err != nil {
		return models.BalanceSnapshot{}, err
	}

	native, err := adapter.GetBalance(ctx, w.Address)
	if err != nil {
		observability.IncrementAdapterCall(w.BackendID, "get_balance", "error")
		return models.BalanceSnapshot{}, err
	}
	observability.IncrementAdapterCall(w.BackendID, "get_balance", "ok")

	normalized, err := adapter.Normalize(ctx, native)
	if err != nil {
		return models.BalanceSnapshot{}, fmt.Errorf("normalize balance: %w", err)
	}

	return models.BalanceSnapshot{
		WalletID:         w.ID,
		BackendID:        w.BackendID,
		NativeMicros:     native,
		NativeUnit:       backend.NativeUnit,
		NormalizedMicros: normalized,
		AsOf:             time.Now().UTC(),
		IsStale:          false,
	}, nil
}
