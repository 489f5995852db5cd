// Package leaderboard ranks every user by total value: cash plus open
// positions at live prices.
//
// A full recomputation prices the distinct symbols across all users in one
// batched pass, so the provider sees one lookup per symbol regardless of
// how many users hold it. The whole ranked snapshot is cached as a unit;
// a cache hit skips every fetch and recomputation. Symbols that fail to
// resolve count at price 0 rather than failing the board — availability
// over accuracy, for the aggregate view only.
package leaderboard

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/papertrade/engine/internal/httpx"
	"github.com/papertrade/engine/internal/metrics"
	"github.com/papertrade/engine/internal/model"
	"github.com/papertrade/engine/internal/quote"
	"github.com/papertrade/engine/internal/store"
)

// Aggregator computes and caches the ranked leaderboard snapshot.
type Aggregator struct {
	store   store.UserStore
	fetcher *quote.BatchFetcher
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	snapshot []model.LeaderboardEntry
	builtAt  time.Time
}

// NewAggregator creates an aggregator. Pass nil for now to use time.Now.
func NewAggregator(st store.UserStore, fetcher *quote.BatchFetcher, ttl time.Duration, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		store:   st,
		fetcher: fetcher,
		ttl:     ttl,
		now:     now,
	}
}

// TopN returns the top n entries of the ranked snapshot, recomputing it on
// cache expiry. n = -1 means all entries, no truncation — rank lookups use
// this to see the full board.
func (a *Aggregator) TopN(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.snapshot == nil || a.now().Sub(a.builtAt) >= a.ttl {
		snapshot, err := a.rebuild(ctx)
		if err != nil {
			return nil, err
		}
		a.snapshot = snapshot
		a.builtAt = a.now()
	}

	entries := a.snapshot
	if n >= 0 && n < len(entries) {
		entries = entries[:n]
	}
	// Copy so callers cannot mutate the cached snapshot.
	return append([]model.LeaderboardEntry(nil), entries...), nil
}

// rebuild recomputes every user's total value from the all-users
// projection and a shared price map.
func (a *Aggregator) rebuild(ctx context.Context) ([]model.LeaderboardEntry, error) {
	users, err := a.store.FindAllProjected(ctx)
	if err != nil {
		return nil, err
	}

	// Distinct symbols across every user's book.
	seen := make(map[string]bool)
	var symbols []string
	for _, u := range users {
		for _, p := range u.Positions {
			if !seen[p.Symbol] {
				seen[p.Symbol] = true
				symbols = append(symbols, p.Symbol)
			}
		}
	}

	prices := a.fetcher.Prices(ctx, symbols)

	entries := make([]model.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		total := u.Cash
		for _, p := range u.Positions {
			total = total.Add(prices[p.Symbol].Mul(p.Quantity))
		}
		entries = append(entries, model.LeaderboardEntry{
			Username: u.Username,
			Value:    total,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value.GreaterThan(entries[j].Value)
	})

	metrics.LeaderboardRebuilds.Inc()
	slog.Info("leaderboard rebuilt", "users", len(entries), "symbols", len(symbols))
	return entries, nil
}

// GetLeaderboard handles GET /api/v1/leaderboard
func (a *Aggregator) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := a.TopN(r.Context(), -1)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string][]model.LeaderboardEntry{"users": entries})
}
