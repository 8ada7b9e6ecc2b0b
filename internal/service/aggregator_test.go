package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPortfolioAggregatesAcrossBackends(t *testing.T) {
	h := newHarness(t)
	h.newWallet(t, "eth-mainnet", 2_000_000) // 2 ETH at 3200 = 6400 USD
	h.newWallet(t, "eth-mainnet", 1_000_000) // 1 ETH = 3200 USD
	h.newWallet(t, "bank-usd", 500_000_000)  // 500 USD

	snap, err := h.agg.GetPortfolio(context.Background(), h.avatar)
	require.NoError(t, err)

	assert.Equal(t, h.avatar, snap.AvatarID)
	assert.Equal(t, NormalizedUnit, snap.ValueUnit)
	assert.Equal(t, 3, snap.WalletCount)
	assert.Equal(t, 0, snap.StaleWalletCount)
	assert.Equal(t, int64(6_400_000_000+3_200_000_000+500_000_000), snap.TotalValueMicros)

	require.Len(t, snap.PerBackend, 2)
	assert.Equal(t, "bank-usd", snap.PerBackend[0].BackendID)
	assert.Equal(t, int64(500_000_000), snap.PerBackend[0].NormalizedMicros)
	assert.Equal(t, "eth-mainnet", snap.PerBackend[1].BackendID)
	assert.Equal(t, int64(3_000_000), snap.PerBackend[1].NativeMicros)
	assert.Equal(t, int64(9_600_000_000), snap.PerBackend[1].NormalizedMicros)
	assert.Equal(t, 2, snap.PerBackend[1].WalletCount)
}

func TestGetPortfolioEmptyAvatar(t *testing.T) {
	h := newHarness(t)

	snap, err := h.agg.GetPortfolio(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, snap.WalletCount)
	assert.Zero(t, snap.TotalValueMicros)
	assert.Empty(t, snap.PerBackend)
}

func TestWalletSnapshotServesStaleOnBackendOutage(t *testing.T) {
	h := newHarness(t)
	w := h.newWallet(t, "btc-mainnet", 3_000_000)
	ctx := context.Background()

	// First read populates the cache.
	fresh := h.agg.WalletSnapshot(ctx, *w)
	require.False(t, fresh.IsStale)
	require.Equal(t, int64(3_000_000), fresh.NativeMicros)

	// Expire the cached snapshot, then take the backend down. The aggregator
	// must degrade to the last-known value instead of failing.
	short := NewAggregator(h.wallets, h.registry, h.cache, time.Nanosecond)
	h.adapters["btc-mainnet"].SetBalanceError(errors.New("rpc node unreachable"))
	time.Sleep(time.Millisecond)

	stale := short.WalletSnapshot(ctx, *w)
	assert.True(t, stale.IsStale)
	assert.Equal(t, int64(3_000_000), stale.NativeMicros)
	assert.Equal(t, fresh.NormalizedMicros, stale.NormalizedMicros)
}

func TestWalletSnapshotZeroValueWhenNeverSeen(t *testing.T) {
	h := newHarness(t)
	w := h.newWallet(t, "btc-mainnet", 3_000_000)
	h.adapters["btc-mainnet"].SetBalanceError(errors.New("rpc node unreachable"))

	snap := h.agg.WalletSnapshot(context.Background(), *w)
	assert.True(t, snap.IsStale)
	assert.Zero(t, snap.NativeMicros)
	assert.Equal(t, "BTC", snap.NativeUnit)
}

func TestPortfolioCountsStaleWallets(t *testing.T) {
	h := newHarness(t)
	h.newWallet(t, "eth-mainnet", 1_000_000)
	h.newWallet(t, "btc-mainnet", 2_000_000)
	h.adapters["btc-mainnet"].SetBalanceError(errors.New("rpc node unreachable"))

	snap, err := h.agg.GetPortfolio(context.Background(), h.avatar)
	require.NoError(t, err)

	// The unreachable backend degrades; the healthy one still reports.
	assert.Equal(t, 2, snap.WalletCount)
	assert.Equal(t, 1, snap.StaleWalletCount)
	assert.Equal(t, int64(3_200_000_000), snap.TotalValueMicros)

	for _, line := range snap.PerBackend {
		if line.BackendID == "btc-mainnet" {
			assert.True(t, line.Stale)
		} else {
			assert.False(t, line.Stale)
		}
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	h := newHarness(t)
	w := h.newWallet(t, "eth-mainnet", 1_000_000)
	ctx := context.Background()

	first := h.agg.WalletSnapshot(ctx, *w)
	require.Equal(t, int64(1_000_000), first.NativeMicros)

	// A cached snapshot hides the new deposit until invalidated.
	h.adapters["eth-mainnet"].Fund(w.Address, 500_000)
	cached := h.agg.WalletSnapshot(ctx, *w)
	assert.Equal(t, int64(1_000_000), cached.NativeMicros)

	h.agg.Invalidate(ctx, w.ID)
	refreshed := h.agg.WalletSnapshot(ctx, *w)
	assert.Equal(t, int64(1_500_000), refreshed.NativeMicros)
}

func TestTransferInvalidatesSnapshots(t *testing.T) {
	h := newHarness(t)
	src := h.newWallet(t, "eth-mainnet", 5_000_000)
	dst := h.newWallet(t, "eth-mainnet", 0)
	ctx := context.Background()

	before := h.agg.WalletSnapshot(ctx, *src)
	require.Equal(t, int64(5_000_000), before.NativeMicros)

	rec := h.submitAndDrive(t, transferReq(src, dst, 1_000_000))
	require.Equal(t, domain.StateCompleted, rec.State)

	after := h.agg.WalletSnapshot(ctx, *src)
	assert.Equal(t, 5_000_000-1_000_000-rec.FeeMicros, after.NativeMicros)
}
