// Package portfolio computes a user's live portfolio valuation and serves
// the user-data endpoints (portfolio, holdings, ledger, watchlist).
package portfolio

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/leaderboard"
	"github.com/papertrade/engine/internal/model"
	"github.com/papertrade/engine/internal/quote"
	"github.com/papertrade/engine/internal/store"
)

// EnrichedPosition is an open position merged with its live quote.
type EnrichedPosition struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	PurchaseDate  time.Time       `json:"purchaseDate"`
	LongName      string          `json:"longName"`
	Price         decimal.Decimal `json:"regularMarketPrice"`
	PrevClose     decimal.Decimal `json:"regularMarketPreviousClose"`
	ChangePercent decimal.Decimal `json:"regularMarketChangePercent"`
	QuoteType     string          `json:"quoteType"`
}

// Summary is the full portfolio view returned to the caller. The two
// valuation figures exclude cash; Rank is 1-based, -1 when the user is
// not on the board.
type Summary struct {
	PortfolioValue          decimal.Decimal    `json:"portfolioValue"`
	PortfolioPrevCloseValue decimal.Decimal    `json:"portfolioPrevCloseValue"`
	Positions               []EnrichedPosition `json:"positions"`
	Cash                    decimal.Decimal    `json:"cash"`
	Rank                    int                `json:"rank"`
}

// Valuator computes live portfolio valuations.
//
// Unlike the leaderboard, a valuation must not silently price a missing
// quote at zero: any quote failure fails the whole valuation.
type Valuator struct {
	store  store.UserStore
	oracle *quote.Oracle
	board  *leaderboard.Aggregator
}

// NewValuator creates a valuator.
func NewValuator(st store.UserStore, oracle *quote.Oracle, board *leaderboard.Aggregator) *Valuator {
	return &Valuator{
		store:  st,
		oracle: oracle,
		board:  board,
	}
}

// Portfolio computes the live valuation for userID.
func (v *Valuator) Portfolio(ctx context.Context, userID string) (*Summary, error) {
	user, err := v.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// One quote per distinct symbol, preserving first-seen order.
	var symbols []string
	seen := make(map[string]bool)
	for _, p := range user.Positions {
		if !seen[p.Symbol] {
			seen[p.Symbol] = true
			symbols = append(symbols, p.Symbol)
		}
	}

	quotes := make(map[string]model.Quote, len(symbols))
	for _, symbol := range symbols {
		q, err := v.oracle.FetchQuote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		quotes[symbol] = q
	}

	value := decimal.Zero
	prevCloseValue := decimal.Zero
	positions := make([]EnrichedPosition, 0, len(user.Positions))
	for _, p := range user.Positions {
		q := quotes[p.Symbol]
		value = value.Add(q.Price.Mul(p.Quantity))
		prevCloseValue = prevCloseValue.Add(q.PrevClose.Mul(p.Quantity))
		positions = append(positions, EnrichedPosition{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			PurchasePrice: p.PurchasePrice,
			PurchaseDate:  p.PurchaseDate,
			LongName:      q.LongName,
			Price:         q.Price,
			PrevClose:     q.PrevClose,
			ChangePercent: q.ChangePercent,
			QuoteType:     q.QuoteType,
		})
	}

	rank := -1
	entries, err := v.board.TopN(ctx, -1)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if e.Username == user.Username {
			rank = i + 1
			break
		}
	}

	return &Summary{
		PortfolioValue:          value,
		PortfolioPrevCloseValue: prevCloseValue,
		Positions:               positions,
		Cash:                    user.Cash,
		Rank:                    rank,
	}, nil
}
