package rates

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticOracleRates(t *testing.T) {
	o := NewStaticOracle()
	ctx := context.Background()

	ethUSD, err := o.Rate(ctx, "ETH", "USD")
	require.NoError(t, err)
	assert.True(t, ethUSD.Equal(decimal.NewFromInt(3200)))

	same, err := o.Rate(ctx, "USD", "USD")
	require.NoError(t, err)
	assert.True(t, same.Equal(decimal.NewFromInt(1)))

	// Cross rates go through the USD quotes.
	ethBTC, err := o.Rate(ctx, "ETH", "BTC")
	require.NoError(t, err)
	expected := decimal.NewFromInt(3200).Div(decimal.NewFromInt(97000))
	assert.True(t, ethBTC.Sub(expected).Abs().LessThan(decimal.RequireFromString("0.000001")))
}

func TestStaticOracleUnknownUnit(t *testing.T) {
	o := NewStaticOracle()
	_, err := o.Rate(context.Background(), "DOGE", "USD")
	assert.Error(t, err)
	_, err = o.Rate(context.Background(), "USD", "DOGE")
	assert.Error(t, err)
}

func TestSetUSDRate(t *testing.T) {
	o := NewStaticOracle()
	o.SetUSDRate("DOGE", decimal.RequireFromString("0.25"))

	rate, err := o.Rate(context.Background(), "DOGE", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.25")))
}
