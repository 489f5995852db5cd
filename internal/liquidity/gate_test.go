package liquidity_test

import (
	"errors"
	"testing"

	"github.com/papertrade/engine/internal/liquidity"
	"github.com/papertrade/engine/internal/model"
)

func TestGateCheck(t *testing.T) {
	gate := liquidity.NewGate(100_000, 1_000_000)

	tests := []struct {
		name  string
		quote model.Quote
		ok    bool
	}{
		{
			name:  "equity above floor",
			quote: model.Quote{Symbol: "AAPL", QuoteType: "EQUITY", AvgVolume10Day: 100_000},
			ok:    true,
		},
		{
			name:  "equity below floor",
			quote: model.Quote{Symbol: "TINY", QuoteType: "EQUITY", AvgVolume10Day: 99_999},
			ok:    false,
		},
		{
			name:  "crypto above its floor",
			quote: model.Quote{Symbol: "BTC-USD", QuoteType: model.QuoteTypeCrypto, AvgVolume10Day: 1_000_000},
			ok:    true,
		},
		{
			name: "crypto above equity floor but below crypto floor",
			quote: model.Quote{
				Symbol: "SHIB-USD", QuoteType: model.QuoteTypeCrypto, AvgVolume10Day: 500_000,
			},
			ok: false,
		},
		{
			name:  "missing volume",
			quote: model.Quote{Symbol: "WEIRD", QuoteType: "EQUITY", AvgVolume10Day: 0},
			ok:    false,
		},
		{
			name:  "crypto with missing volume",
			quote: model.Quote{Symbol: "NEW-USD", QuoteType: model.QuoteTypeCrypto, AvgVolume10Day: 0},
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Check(tt.quote)
			if tt.ok && err != nil {
				t.Errorf("Check(%s) = %v, want nil", tt.quote.Symbol, err)
			}
			if !tt.ok && !errors.Is(err, liquidity.ErrInsufficientLiquidity) {
				t.Errorf("Check(%s) = %v, want ErrInsufficientLiquidity", tt.quote.Symbol, err)
			}
		})
	}
}
