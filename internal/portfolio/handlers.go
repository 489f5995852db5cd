package portfolio

import (
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/papertrade/engine/internal/auth"
	"github.com/papertrade/engine/internal/httpx"
	"github.com/papertrade/engine/internal/model"
	"github.com/papertrade/engine/internal/quote"
	"github.com/papertrade/engine/internal/store"
)

// Handlers serves the authenticated user-data endpoints.
type Handlers struct {
	store    store.UserStore
	valuator *Valuator
	oracle   *quote.Oracle
}

// NewHandlers creates the user-data handlers.
func NewHandlers(st store.UserStore, valuator *Valuator, oracle *quote.Oracle) *Handlers {
	return &Handlers{
		store:    st,
		valuator: valuator,
		oracle:   oracle,
	}
}

// GetPortfolio handles GET /api/v1/user/portfolio
func (h *Handlers) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := h.valuator.Portfolio(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// GetHoldings handles GET /api/v1/user/holdings
func (h *Handlers) GetHoldings(w http.ResponseWriter, r *http.Request) {
	user, err := h.findUser(w, r)
	if err != nil {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"positions": user.Positions,
		"cash":      user.Cash,
	})
}

// GetLedger handles GET /api/v1/user/ledger
func (h *Handlers) GetLedger(w http.ResponseWriter, r *http.Request) {
	user, err := h.findUser(w, r)
	if err != nil {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string][]model.Transaction{"ledger": user.Ledger})
}

// GetUsername handles GET /api/v1/user/username
func (h *Handlers) GetUsername(w http.ResponseWriter, r *http.Request) {
	user, err := h.findUser(w, r)
	if err != nil {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"username": user.Username})
}

// GetWatchlist handles GET /api/v1/user/watchlist
// With ?raw=true the symbols are returned as-is; otherwise each is
// resolved to a live quote.
func (h *Handlers) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	user, err := h.findUser(w, r)
	if err != nil {
		return
	}

	if r.URL.Query().Get("raw") == "true" {
		httpx.JSON(w, http.StatusOK, map[string][]string{"watchlist": user.Watchlist})
		return
	}

	quotes := make([]model.Quote, 0, len(user.Watchlist))
	for _, symbol := range user.Watchlist {
		q, err := h.oracle.FetchQuote(r.Context(), symbol)
		if err != nil {
			httpx.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		quotes = append(quotes, q)
	}
	httpx.JSON(w, http.StatusOK, map[string][]model.Quote{"watchlist": quotes})
}

// AddToWatchlist handles POST /api/v1/user/watchlist/add/{symbol}
func (h *Handlers) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	user, err := h.findUser(w, r)
	if err != nil {
		return
	}

	if slices.Contains(user.Watchlist, symbol) {
		httpx.Error(w, http.StatusBadRequest, "Already in watchlist")
		return
	}
	user.Watchlist = append(user.Watchlist, symbol)
	if err := h.store.Save(r.Context(), user); err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Added to watchlist"})
}

// RemoveFromWatchlist handles POST /api/v1/user/watchlist/remove/{symbol}
func (h *Handlers) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	user, err := h.findUser(w, r)
	if err != nil {
		return
	}

	idx := slices.Index(user.Watchlist, symbol)
	if idx < 0 {
		httpx.Error(w, http.StatusBadRequest, "Not in watchlist")
		return
	}
	user.Watchlist = slices.Delete(user.Watchlist, idx, idx+1)
	if err := h.store.Save(r.Context(), user); err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Removed from watchlist"})
}

func (h *Handlers) findUser(w http.ResponseWriter, r *http.Request) (*model.User, error) {
	user, err := h.store.FindByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			httpx.Error(w, http.StatusNotFound, "User not found")
		} else {
			httpx.Error(w, http.StatusInternalServerError, err.Error())
		}
		return nil, err
	}
	return user, nil
}
