// Package quote fetches live market quotes from the external provider,
// shields it behind a TTL cache, and fans out batched lookups with pacing
// to respect upstream rate limits.
package quote

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/model"
)

var (
	// ErrNotFound is returned when the provider has no quote for a symbol.
	ErrNotFound = errors.New("quote: symbol not found")

	// ErrProvider is returned on upstream failure, distinct from an
	// unknown symbol.
	ErrProvider = errors.New("quote: provider failure")
)

// LookupKind discriminates the three shapes a provider lookup can take.
type LookupKind int

const (
	// LookupSingle carries exactly one quote.
	LookupSingle LookupKind = iota

	// LookupPartial carries zero or more candidate quotes that the caller
	// must scan for an exact symbol match.
	LookupPartial

	// LookupFailed carries an upstream error.
	LookupFailed
)

// Lookup is the typed result of a provider quote lookup.
type Lookup struct {
	Kind       LookupKind
	Quote      model.Quote   // set when Kind == LookupSingle
	Candidates []model.Quote // set when Kind == LookupPartial
	Err        error         // set when Kind == LookupFailed
}

// PricePoint is one sample of a historical close-price series.
type PricePoint struct {
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	Close     decimal.Decimal `json:"close"`
}

// Provider is the external quote source consumed by the engine.
type Provider interface {
	// Lookup fetches a live quote for one symbol.
	Lookup(ctx context.Context, symbol string) Lookup

	// Search returns candidate quotes for a free-text query.
	Search(ctx context.Context, query string) ([]model.Quote, error)

	// Historical returns the close-price series for a period
	// (1d, 5d, 1m, 6m, YTD, 1y, all).
	Historical(ctx context.Context, symbol, period string) ([]PricePoint, error)
}
