package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/leaderboard"
	"github.com/papertrade/engine/internal/model"
	"github.com/papertrade/engine/internal/quote"
	"github.com/papertrade/engine/internal/store"
)

type fakeProvider struct {
	mu     sync.Mutex
	quotes map[string]model.Quote
}

func (p *fakeProvider) Lookup(_ context.Context, symbol string) quote.Lookup {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.quotes[symbol]
	if !ok {
		return quote.Lookup{Kind: quote.LookupPartial}
	}
	return quote.Lookup{Kind: quote.LookupSingle, Quote: q}
}

func (p *fakeProvider) Search(context.Context, string) ([]model.Quote, error) {
	return nil, nil
}

func (p *fakeProvider) Historical(context.Context, string, string) ([]quote.PricePoint, error) {
	return nil, nil
}

// countingStore counts projection scans so the snapshot cache can be
// asserted independently of the quote cache.
type countingStore struct {
	store.UserStore
	mu    sync.Mutex
	scans int
}

func (s *countingStore) FindAllProjected(ctx context.Context) ([]model.UserSummary, error) {
	s.mu.Lock()
	s.scans++
	s.mu.Unlock()
	return s.UserStore.FindAllProjected(ctx)
}

func (s *countingStore) scanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

func seedUsers(t *testing.T, st store.UserStore, users ...*model.User) {
	t.Helper()
	for _, u := range users {
		if err := st.Create(context.Background(), u); err != nil {
			t.Fatalf("seed %s: %v", u.Username, err)
		}
	}
}

func pos(symbol string, qty int64) model.Position {
	return model.Position{Symbol: symbol, Quantity: decimal.NewFromInt(qty)}
}

func newFetcher(quotes map[string]model.Quote) *quote.BatchFetcher {
	oracle := quote.NewOracle(&fakeProvider{quotes: quotes}, quote.NewCache[model.Quote](time.Minute, nil))
	return quote.NewBatchFetcher(oracle, 100, 0, func(time.Duration) {})
}

func TestTopN_RanksByTotalValueDescending(t *testing.T) {
	st := store.NewMemoryStore()
	seedUsers(t, st,
		&model.User{ID: "u1", Username: "alice", Cash: decimal.NewFromInt(500)},
		&model.User{ID: "u2", Username: "bob", Cash: decimal.NewFromInt(500),
			Positions: []model.Position{pos("AAPL", 20)}}, // 500 + 20×50 = 1500
		&model.User{ID: "u3", Username: "carol", Cash: decimal.NewFromInt(1000)},
	)
	agg := leaderboard.NewAggregator(st, newFetcher(map[string]model.Quote{
		"AAPL": {Symbol: "AAPL", Price: decimal.NewFromInt(50)},
	}), time.Minute, nil)

	entries, err := agg.TopN(context.Background(), -1)
	if err != nil {
		t.Fatalf("TopN failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantOrder := []string{"bob", "carol", "alice"}
	wantValue := []int64{1500, 1000, 500}
	for i, e := range entries {
		if e.Username != wantOrder[i] {
			t.Errorf("rank %d = %s, want %s", i+1, e.Username, wantOrder[i])
		}
		if !e.Value.Equal(decimal.NewFromInt(wantValue[i])) {
			t.Errorf("%s value = %s, want %d", e.Username, e.Value, wantValue[i])
		}
	}
}

func TestTopN_Truncates(t *testing.T) {
	st := store.NewMemoryStore()
	seedUsers(t, st,
		&model.User{ID: "u1", Username: "alice", Cash: decimal.NewFromInt(300)},
		&model.User{ID: "u2", Username: "bob", Cash: decimal.NewFromInt(200)},
		&model.User{ID: "u3", Username: "carol", Cash: decimal.NewFromInt(100)},
	)
	agg := leaderboard.NewAggregator(st, newFetcher(nil), time.Minute, nil)

	entries, err := agg.TopN(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopN failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Username != "alice" || entries[1].Username != "bob" {
		t.Errorf("unexpected truncation: %+v", entries)
	}

	// Larger n than the board returns everything.
	all, _ := agg.TopN(context.Background(), 10)
	if len(all) != 3 {
		t.Errorf("n beyond board size should return all, got %d", len(all))
	}
}

func TestTopN_SnapshotCachedUntilTTL(t *testing.T) {
	cs := &countingStore{UserStore: store.NewMemoryStore()}
	seedUsers(t, cs,
		&model.User{ID: "u1", Username: "alice", Cash: decimal.NewFromInt(100)},
	)

	now := time.Unix(5000, 0)
	agg := leaderboard.NewAggregator(cs, newFetcher(nil), 600*time.Second,
		func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if _, err := agg.TopN(context.Background(), -1); err != nil {
			t.Fatalf("TopN failed: %v", err)
		}
	}
	if cs.scanCount() != 1 {
		t.Errorf("expected 1 rebuild within TTL, scanned %d times", cs.scanCount())
	}

	now = now.Add(600 * time.Second)
	if _, err := agg.TopN(context.Background(), -1); err != nil {
		t.Fatalf("TopN failed: %v", err)
	}
	if cs.scanCount() != 2 {
		t.Errorf("expected a rebuild after TTL, scanned %d times", cs.scanCount())
	}
}

func TestTopN_UnresolvableSymbolCountsAsZero(t *testing.T) {
	st := store.NewMemoryStore()
	seedUsers(t, st,
		&model.User{ID: "u1", Username: "alice", Cash: decimal.NewFromInt(500),
			Positions: []model.Position{pos("GHOST", 100)}},
		&model.User{ID: "u2", Username: "bob", Cash: decimal.NewFromInt(400)},
	)
	agg := leaderboard.NewAggregator(st, newFetcher(nil), time.Minute, nil)

	entries, err := agg.TopN(context.Background(), -1)
	if err != nil {
		t.Fatalf("board must not fail on a bad symbol: %v", err)
	}
	// GHOST prices at 0: alice = 500, bob = 400.
	if entries[0].Username != "alice" || !entries[0].Value.Equal(decimal.NewFromInt(500)) {
		t.Errorf("unexpected board: %+v", entries)
	}
}

func TestTopN_ReturnsCopyOfSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	seedUsers(t, st,
		&model.User{ID: "u1", Username: "alice", Cash: decimal.NewFromInt(100)},
	)
	agg := leaderboard.NewAggregator(st, newFetcher(nil), time.Minute, nil)

	first, _ := agg.TopN(context.Background(), -1)
	first[0].Username = "mallory"

	second, _ := agg.TopN(context.Background(), -1)
	if second[0].Username != "alice" {
		t.Errorf("cached snapshot mutated through returned slice")
	}
}
