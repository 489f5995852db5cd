package trade

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/auth"
	"github.com/papertrade/engine/internal/httpx"
	"github.com/papertrade/engine/internal/liquidity"
	"github.com/papertrade/engine/internal/quote"
)

// orderBody is the JSON body for buy/sell requests. Amount present and
// positive selects amount mode on buys; the tagged OrderRequest variant is
// built here at the boundary so the executor never sees the sentinel.
type orderBody struct {
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// BuyStock handles POST /api/v1/stocks/{symbol}/buy
func (s *Service) BuyStock(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	userID := auth.UserID(r.Context())

	var body orderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order := OrderRequest{Mode: ByQuantity, Quantity: body.Quantity}
	if body.Amount.IsPositive() {
		order = OrderRequest{Mode: ByAmount, Amount: body.Amount}
	}

	if err := s.Buy(r.Context(), userID, symbol, order); err != nil {
		writeOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Stock was bought successfully!"})
}

// SellStock handles POST /api/v1/stocks/{symbol}/sell
func (s *Service) SellStock(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	userID := auth.UserID(r.Context())

	var body orderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.Sell(r.Context(), userID, symbol, body.Quantity); err != nil {
		writeOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Stock was sold successfully!"})
}

// writeOrderError maps executor errors to HTTP responses.
func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, liquidity.ErrInsufficientLiquidity):
		httpx.Error(w, http.StatusBadRequest,
			"This asset does not have enough liquidity. This restriction is in place to prevent cheating.")
	case errors.Is(err, ErrInsufficientFunds):
		httpx.Error(w, http.StatusBadRequest, "Not enough cash (insufficient buying power)")
	case errors.Is(err, ErrInsufficientShares):
		httpx.Error(w, http.StatusBadRequest, "Not enough shares")
	case errors.Is(err, ErrInvalidOrder):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, quote.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		httpx.Error(w, http.StatusInternalServerError, err.Error())
	}
}
