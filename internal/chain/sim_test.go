package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ethBackend = models.Backend{ID: "eth-mainnet", Kind: models.BackendKindCrypto, NativeUnit: "ETH", Enabled: true}

func TestSimTransferSettlesOnConfirmation(t *testing.T) {
	sim := testAdapter(ethBackend)
	sim.Fund("alice", 5_000_000)
	ctx := context.Background()

	fee, err := sim.EstimateFee(ctx, 1_000_000, "bob")
	require.NoError(t, err)

	txID, err := sim.SubmitTransfer(ctx, "alice", "bob", 1_000_000)
	require.NoError(t, err)
	require.NotEmpty(t, txID)

	status, err := sim.GetTransferStatus(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)

	aliceBal, _ := sim.GetBalance(ctx, "alice")
	bobBal, _ := sim.GetBalance(ctx, "bob")
	assert.Equal(t, 5_000_000-1_000_000-fee, aliceBal)
	assert.Equal(t, int64(1_000_000), bobBal)

	// Re-polling a settled transfer must not apply it twice.
	status, err = sim.GetTransferStatus(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)
	bobBal, _ = sim.GetBalance(ctx, "bob")
	assert.Equal(t, int64(1_000_000), bobBal)
}

func TestSimTransferStaysPendingUntilLatencyElapses(t *testing.T) {
	sim := testAdapter(ethBackend).WithConfirmLatency(time.Hour)
	sim.Fund("alice", 5_000_000)
	ctx := context.Background()

	txID, err := sim.SubmitTransfer(ctx, "alice", "bob", 1_000_000)
	require.NoError(t, err)

	status, err := sim.GetTransferStatus(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	// Unsettled spend still reduces what a second transfer can use.
	_, err = sim.SubmitTransfer(ctx, "alice", "carol", 4_000_000)
	assert.ErrorIs(t, err, domain.ErrAdapterRejected)
}

func TestSimRejectsOverdraft(t *testing.T) {
	sim := testAdapter(ethBackend)
	sim.Fund("alice", 1_000_000)

	_, err := sim.SubmitTransfer(context.Background(), "alice", "bob", 1_000_000)
	assert.ErrorIs(t, err, domain.ErrAdapterRejected)
}

func TestSimRejectNextSubmit(t *testing.T) {
	sim := testAdapter(ethBackend)
	sim.Fund("alice", 5_000_000)
	sim.RejectNextSubmit()
	ctx := context.Background()

	txID, err := sim.SubmitTransfer(ctx, "alice", "bob", 1_000_000)
	require.NoError(t, err)

	status, err := sim.GetTransferStatus(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, status)

	// A rejected transfer moves nothing.
	aliceBal, _ := sim.GetBalance(ctx, "alice")
	assert.Equal(t, int64(5_000_000), aliceBal)
}

func TestSimFaultInjection(t *testing.T) {
	sim := testAdapter(ethBackend)
	sim.Fund("alice", 5_000_000)
	ctx := context.Background()

	boom := errors.New("rpc down")
	sim.SetBalanceError(boom)
	_, err := sim.GetBalance(ctx, "alice")
	assert.ErrorIs(t, err, boom)
	sim.SetBalanceError(nil)

	sim.SetSubmitError(boom)
	_, err = sim.SubmitTransfer(ctx, "alice", "bob", 1_000)
	assert.ErrorIs(t, err, boom)
	sim.SetSubmitError(nil)

	_, err = sim.SubmitTransfer(ctx, "alice", "bob", 1_000)
	assert.NoError(t, err)
}

func TestSimDepositMintsFunds(t *testing.T) {
	sim := testAdapter(ethBackend)
	ctx := context.Background()

	txID, err := sim.Deposit(ctx, "bob", 2_000_000)
	require.NoError(t, err)

	status, err := sim.GetTransferStatus(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)

	bobBal, _ := sim.GetBalance(ctx, "bob")
	assert.Equal(t, int64(2_000_000), bobBal)
}

func TestSimEdgeCases(t *testing.T) {
	sim := testAdapter(ethBackend)
	ctx := context.Background()

	_, err := sim.GetBalance(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = sim.SubmitTransfer(ctx, "", "bob", 1_000)
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = sim.EstimateFee(ctx, 1_000, "")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = sim.GetTransferStatus(ctx, "no-such-tx")
	assert.ErrorIs(t, err, domain.ErrAdapterRejected)

	// Unknown addresses hold zero, not an error.
	bal, err := sim.GetBalance(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestSimFeeSchedule(t *testing.T) {
	sim := testAdapter(ethBackend).WithFees(500, 25)

	fee, err := sim.EstimateFee(context.Background(), 1_000_000, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(500+2_500), fee)
}
