package quote

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/httpx"
	"github.com/papertrade/engine/internal/model"
)

// Handlers serves the public market-data endpoints.
type Handlers struct {
	oracle   *Oracle
	provider Provider
	history  *Cache[[]PricePoint]
	feeRate  decimal.Decimal
}

// NewHandlers creates the market-data handlers. The history cache shares
// the quote cache's TTL semantics but stores close-price series keyed by
// symbol and period term.
func NewHandlers(oracle *Oracle, provider Provider, history *Cache[[]PricePoint], feeRate decimal.Decimal) *Handlers {
	return &Handlers{
		oracle:   oracle,
		provider: provider,
		history:  history,
		feeRate:  feeRate,
	}
}

// GetInfo handles GET /api/v1/stocks/{symbol}/info
func (h *Handlers) GetInfo(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	q, err := h.oracle.FetchQuote(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "No results found for "+symbol)
			return
		}
		httpx.Error(w, http.StatusInternalServerError, "Error fetching "+symbol+" stock data")
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// historyTerm buckets periods into the two cache keys the series are
// stored under: intraday-backed short periods and daily-backed long ones.
func historyTerm(period string) string {
	switch period {
	case "1d", "5d", "1m", "":
		return "short"
	default:
		return "long"
	}
}

// GetHistorical handles GET /api/v1/stocks/{symbol}/historical?period=
func (h *Handlers) GetHistorical(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1d"
	}

	cacheKey := symbol + "-historical-" + historyTerm(period)
	if points, ok := h.history.Get(cacheKey); ok {
		httpx.JSON(w, http.StatusOK, points)
		return
	}

	points, err := h.provider.Historical(r.Context(), symbol, period)
	if err != nil {
		slog.Error("historical fetch failed", "symbol", symbol, "period", period, "err", err)
		httpx.Error(w, http.StatusInternalServerError, "Error fetching "+symbol+" historical data")
		return
	}

	h.history.Set(cacheKey, points)
	httpx.JSON(w, http.StatusOK, points)
}

// Search handles GET /api/v1/stocks/search/{query}
// Futures and options are filtered out: they are not tradable here.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if query == "" {
		httpx.Error(w, http.StatusBadRequest, "No query provided")
		return
	}

	quotes, err := h.provider.Search(r.Context(), query)
	if err != nil {
		slog.Error("search failed", "query", query, "err", err)
		httpx.Error(w, http.StatusInternalServerError, "Search failed")
		return
	}

	tradable := make([]model.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.QuoteType == "" || q.QuoteType == "FUTURE" || q.QuoteType == "Option" {
			continue
		}
		tradable = append(tradable, q)
	}
	httpx.JSON(w, http.StatusOK, tradable)
}

// GetFee handles GET /api/v1/stocks/fee
func (h *Handlers) GetFee(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]decimal.Decimal{"fee": h.feeRate})
}
