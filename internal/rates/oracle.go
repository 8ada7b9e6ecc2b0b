package rates

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Oracle supplies native-to-fiat conversion rates for balance normalization.
// The rate source itself is an external collaborator; this package only
// defines the contract and a static implementation.
type Oracle interface {
	// Rate returns the conversion rate (target / source) between two units.
	Rate(ctx context.Context, sourceUnit, targetUnit string) (decimal.Decimal, error)
}

// StaticOracle serves rates from a fixed table of USD-relative quotes.
type StaticOracle struct {
	mu  sync.RWMutex
	usd map[string]decimal.Decimal
}

// NewStaticOracle creates an oracle seeded with indicative quotes for the
// supported units. Unknown units can be added with SetUSDRate.
func NewStaticOracle() *StaticOracle {
	quotes := map[string]float64{
		"USD":   1.0,
		"EUR":   1.087,
		"GBP":   1.266,
		"ETH":   3200.0,
		"BTC":   97000.0,
		"SOL":   210.0,
		"MATIC": 0.52,
		"AVAX":  38.0,
		"BNB":   640.0,
		"ADA":   0.91,
		"DOT":   7.4,
		"EOS":   0.82,
		"XLM":   0.41,
		"TRX":   0.24,
		"NEO":   13.5,
		"HOT":   0.0031,
		"IPFS":  1.0,
	}
	usd := make(map[string]decimal.Decimal, len(quotes))
	for unit, quote := range quotes {
		usd[unit] = decimal.NewFromFloat(quote)
	}
	return &StaticOracle{usd: usd}
}

// SetUSDRate overrides or adds the USD quote for a unit.
func (o *StaticOracle) SetUSDRate(unit string, rate decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.usd[unit] = rate
}

// Rate returns (target / source) derived from the USD quotes.
func (o *StaticOracle) Rate(ctx context.Context, sourceUnit, targetUnit string) (decimal.Decimal, error) {
	if sourceUnit == targetUnit {
		return decimal.NewFromInt(1), nil
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	sourceUSD, ok := o.usd[sourceUnit]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for unit %q", sourceUnit)
	}
	targetUSD, ok := o.usd[targetUnit]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for unit %q", targetUnit)
	}
	if targetUSD.IsZero() {
		return decimal.Zero, fmt.Errorf("zero rate for unit %q", targetUnit)
	}

	return sourceUSD.Div(targetUSD), nil
}
