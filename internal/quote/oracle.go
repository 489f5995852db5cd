package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/papertrade/engine/internal/metrics"
	"github.com/papertrade/engine/internal/model"
)

// Oracle fetches a single symbol's live quote through the TTL cache,
// normalizing provider errors into ErrNotFound / ErrProvider.
type Oracle struct {
	provider Provider
	cache    *Cache[model.Quote]
}

// NewOracle creates an Oracle over the given provider and cache.
func NewOracle(p Provider, c *Cache[model.Quote]) *Oracle {
	return &Oracle{provider: p, cache: c}
}

// FetchQuote returns the live quote for symbol.
//
// The cache is keyed by the symbol the provider returns, which may differ
// in casing or suffix from the request; on success the quote is stored
// under that canonical symbol so subsequent canonical lookups hit.
func (o *Oracle) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if q, ok := o.cache.Get(symbol); ok {
		metrics.QuoteCacheHits.Inc()
		return q, nil
	}
	metrics.QuoteCacheMisses.Inc()

	lookup := o.provider.Lookup(ctx, symbol)
	switch lookup.Kind {
	case LookupSingle:
		metrics.ProviderLookups.WithLabelValues("single").Inc()
		if !strings.EqualFold(lookup.Quote.Symbol, symbol) {
			return model.Quote{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)
		}
		o.cache.Set(lookup.Quote.Symbol, lookup.Quote)
		return lookup.Quote, nil

	case LookupPartial:
		metrics.ProviderLookups.WithLabelValues("partial").Inc()
		for _, q := range lookup.Candidates {
			if strings.EqualFold(q.Symbol, symbol) {
				o.cache.Set(q.Symbol, q)
				return q, nil
			}
		}
		return model.Quote{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)

	default:
		metrics.ProviderLookups.WithLabelValues("failed").Inc()
		return model.Quote{}, fmt.Errorf("%w: %s: %v", ErrProvider, symbol, lookup.Err)
	}
}
