package quote

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// BatchFetcher resolves quotes for many symbols with bounded concurrency
// and inter-batch pacing. Symbols are partitioned into batches; the calls
// within a batch run fully concurrently, and a fixed pause is inserted
// between successive batches (never after the last) to respect the
// provider's rate limits.
//
// A symbol that fails to resolve maps to price 0 — the explicit
// "unavailable" sentinel. One bad symbol never fails the batch.
type BatchFetcher struct {
	oracle    *Oracle
	batchSize int
	pause     time.Duration
	sleep     func(time.Duration)
}

// NewBatchFetcher creates a fetcher over the oracle. Pass nil for sleep to
// use time.Sleep; tests inject a recorder instead.
func NewBatchFetcher(o *Oracle, batchSize int, pause time.Duration, sleep func(time.Duration)) *BatchFetcher {
	if batchSize < 1 {
		batchSize = 1
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &BatchFetcher{
		oracle:    o,
		batchSize: batchSize,
		pause:     pause,
		sleep:     sleep,
	}
}

// Prices returns a live price per requested symbol. Unresolvable symbols
// are present in the result with price 0.
func (f *BatchFetcher) Prices(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(symbols))
	var mu sync.Mutex

	for start := 0; start < len(symbols); start += f.batchSize {
		if start > 0 {
			f.sleep(f.pause)
		}

		end := min(start+f.batchSize, len(symbols))

		var wg sync.WaitGroup
		for _, symbol := range symbols[start:end] {
			wg.Add(1)
			go func(symbol string) {
				defer wg.Done()
				price := decimal.Zero
				if q, err := f.oracle.FetchQuote(ctx, symbol); err == nil {
					price = q.Price
				}
				mu.Lock()
				prices[symbol] = price
				mu.Unlock()
			}(symbol)
		}
		wg.Wait()
	}

	return prices
}
