package portfolio_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/auth"
	"github.com/papertrade/engine/internal/leaderboard"
	"github.com/papertrade/engine/internal/model"
	"github.com/papertrade/engine/internal/portfolio"
	"github.com/papertrade/engine/internal/quote"
	"github.com/papertrade/engine/internal/store"
)

func newUserServer(t *testing.T, quotes map[string]model.Quote, users ...*model.User) (*httptest.Server, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	for _, u := range users {
		if err := st.Create(context.Background(), u); err != nil {
			t.Fatalf("seed %s: %v", u.Username, err)
		}
	}
	p := &fakeProvider{quotes: quotes}
	oracle := quote.NewOracle(p, quote.NewCache[model.Quote](time.Minute, nil))
	fetcher := quote.NewBatchFetcher(oracle, 100, 0, func(time.Duration) {})
	board := leaderboard.NewAggregator(st, fetcher, time.Minute, nil)
	valuator := portfolio.NewValuator(st, oracle, board)
	handlers := portfolio.NewHandlers(st, valuator, oracle)
	identity := auth.NewIdentity(st, "x-username", decimal.NewFromInt(100_000))

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware)
		r.Route("/api/v1/user", func(r chi.Router) {
			r.Get("/portfolio", handlers.GetPortfolio)
			r.Get("/holdings", handlers.GetHoldings)
			r.Get("/ledger", handlers.GetLedger)
			r.Get("/username", handlers.GetUsername)
			r.Get("/watchlist", handlers.GetWatchlist)
			r.Post("/watchlist/add/{symbol}", handlers.AddToWatchlist)
			r.Post("/watchlist/remove/{symbol}", handlers.RemoveFromWatchlist)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, st
}

func do(t *testing.T, method, url, username string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("x-username", username)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp, raw
}

func TestGetPortfolio(t *testing.T) {
	srv, _ := newUserServer(t, map[string]model.Quote{
		"AAPL": quoteFor("AAPL", 50, 48),
	}, &model.User{
		ID: "u1", Username: "alice", Cash: decimal.NewFromInt(500),
		Positions: []model.Position{
			{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), PurchasePrice: decimal.NewFromInt(40)},
		},
	})

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/user/portfolio", "alice")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	var sum struct {
		PortfolioValue decimal.Decimal `json:"portfolioValue"`
		Cash           decimal.Decimal `json:"cash"`
		Rank           int             `json:"rank"`
	}
	if err := json.Unmarshal(body, &sum); err != nil {
		t.Fatal(err)
	}
	if !sum.PortfolioValue.Equal(decimal.NewFromInt(500)) {
		t.Errorf("portfolioValue = %s, want 500", sum.PortfolioValue)
	}
	if sum.Rank != 1 {
		t.Errorf("rank = %d, want 1", sum.Rank)
	}
}

func TestGetUsernameAndHoldings(t *testing.T) {
	srv, _ := newUserServer(t, nil, &model.User{
		ID: "u1", Username: "alice", Cash: decimal.NewFromInt(321),
	})

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/user/username", "alice")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var name map[string]string
	if err := json.Unmarshal(body, &name); err != nil {
		t.Fatal(err)
	}
	if name["username"] != "alice" {
		t.Errorf("username = %q", name["username"])
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/user/holdings", "alice")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var holdings struct {
		Cash decimal.Decimal `json:"cash"`
	}
	if err := json.Unmarshal(body, &holdings); err != nil {
		t.Fatal(err)
	}
	if !holdings.Cash.Equal(decimal.NewFromInt(321)) {
		t.Errorf("cash = %s, want 321", holdings.Cash)
	}
}

func TestWatchlist_AddResolveRemove(t *testing.T) {
	srv, st := newUserServer(t, map[string]model.Quote{
		"AAPL": quoteFor("AAPL", 50, 48),
	}, &model.User{
		ID: "u1", Username: "alice", Cash: decimal.NewFromInt(100),
		Watchlist: []string{},
	})

	if resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/user/watchlist/add/AAPL", "alice"); resp.StatusCode != http.StatusOK {
		t.Fatalf("add status = %d", resp.StatusCode)
	}

	// Duplicate add rejected.
	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/user/watchlist/add/AAPL", "alice")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate add status = %d, want 400", resp.StatusCode)
	}
	var msg map[string]string
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatal(err)
	}
	if msg["message"] != "Already in watchlist" {
		t.Errorf("message = %q", msg["message"])
	}

	// Raw listing returns symbols only.
	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/user/watchlist?raw=true", "alice")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("raw watchlist status = %d", resp.StatusCode)
	}
	var raw map[string][]string
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw["watchlist"]) != 1 || raw["watchlist"][0] != "AAPL" {
		t.Errorf("raw watchlist = %v", raw["watchlist"])
	}

	// Default listing resolves live quotes.
	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/user/watchlist", "alice")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watchlist status = %d", resp.StatusCode)
	}
	var resolved map[string][]model.Quote
	if err := json.Unmarshal(body, &resolved); err != nil {
		t.Fatal(err)
	}
	if len(resolved["watchlist"]) != 1 || !resolved["watchlist"][0].Price.Equal(decimal.NewFromInt(50)) {
		t.Errorf("resolved watchlist = %+v", resolved["watchlist"])
	}

	if resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/user/watchlist/remove/AAPL", "alice"); resp.StatusCode != http.StatusOK {
		t.Fatalf("remove status = %d", resp.StatusCode)
	}
	resp, body = do(t, http.MethodPost, srv.URL+"/api/v1/user/watchlist/remove/AAPL", "alice")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("second remove status = %d, want 400", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatal(err)
	}
	if msg["message"] != "Not in watchlist" {
		t.Errorf("message = %q", msg["message"])
	}

	u, _ := st.FindByUsername(context.Background(), "alice")
	if len(u.Watchlist) != 0 {
		t.Errorf("watchlist not persisted empty: %v", u.Watchlist)
	}
}
