// Package liquidity enforces the minimum-daily-volume floor on orders.
//
// Thinly traded instruments are easy to manipulate in a simulated market:
// a symbol whose real-world volume is tiny lets a player move their paper
// valuation at will. The gate rejects orders against any instrument whose
// 10-day average daily volume is below a configured floor; cryptocurrencies
// use a separate, typically higher, floor.
package liquidity

import (
	"errors"
	"fmt"

	"github.com/papertrade/engine/internal/model"
)

// ErrInsufficientLiquidity is returned when an instrument's average daily
// volume is below the required floor, or the volume figure is absent.
var ErrInsufficientLiquidity = errors.New("liquidity: volume below required floor")

// Gate holds the configured volume floors.
type Gate struct {
	minVolume       int64
	cryptoMinVolume int64
}

// NewGate creates a gate with the standard and crypto volume floors.
func NewGate(minVolume, cryptoMinVolume int64) *Gate {
	return &Gate{
		minVolume:       minVolume,
		cryptoMinVolume: cryptoMinVolume,
	}
}

// Check validates a quote against the floors. The checks run in a fixed
// order: crypto floor, then the standard floor, then the absent-volume
// catch-all (a zero volume means the provider reported none).
func (g *Gate) Check(q model.Quote) error {
	if q.QuoteType == model.QuoteTypeCrypto && q.AvgVolume10Day < g.cryptoMinVolume {
		return fmt.Errorf("%w: %s volume %d < %d", ErrInsufficientLiquidity,
			q.Symbol, q.AvgVolume10Day, g.cryptoMinVolume)
	}
	if q.AvgVolume10Day < g.minVolume {
		return fmt.Errorf("%w: %s volume %d < %d", ErrInsufficientLiquidity,
			q.Symbol, q.AvgVolume10Day, g.minVolume)
	}
	if q.AvgVolume10Day == 0 {
		return fmt.Errorf("%w: %s has no volume data", ErrInsufficientLiquidity, q.Symbol)
	}
	return nil
}
