// Package model defines the core domain types shared across the trading
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types recorded in the ledger.
const (
	TxBuy  = "buy"
	TxSell = "sell"
)

// QuoteTypeCrypto is the provider's quote type for cryptocurrencies,
// which are gated by a separate (higher) liquidity floor.
const QuoteTypeCrypto = "CRYPTOCURRENCY"

// User owns a cash balance, an open position book, an append-only ledger,
// and a watchlist. Users are provisioned on first authenticated contact and
// never deleted.
type User struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Cash      decimal.Decimal `json:"cash"`
	Positions []Position      `json:"positions"`
	Ledger    []Transaction   `json:"ledger"`
	Watchlist []string        `json:"watchlist"`
	CreatedAt time.Time       `json:"created_at"`
}

// Position is one open holding. Quantity is always positive; a position is
// removed from the book once fully liquidated. PurchasePrice is a running
// weighted average across the buys merged into it.
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	PurchaseDate  time.Time       `json:"purchaseDate"`
}

// Transaction is an immutable record of an executed order. Once appended to
// a user's ledger it is never modified or deleted.
type Transaction struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Fee       decimal.Decimal `json:"fee"`
	Type      string          `json:"type"` // "buy" or "sell"
	Timestamp time.Time       `json:"timestamp"`
}

// Quote is a transient live quote from the external provider. JSON field
// names follow the provider's payload. Never persisted; cached with a short
// TTL only.
type Quote struct {
	Symbol         string          `json:"symbol"`
	LongName       string          `json:"longName"`
	Price          decimal.Decimal `json:"regularMarketPrice"`
	PrevClose      decimal.Decimal `json:"regularMarketPreviousClose"`
	ChangePercent  decimal.Decimal `json:"regularMarketChangePercent"`
	QuoteType      string          `json:"quoteType"`
	AvgVolume10Day int64           `json:"averageDailyVolume10Day"`
}

// LeaderboardEntry is one row of the ranked snapshot:
// value = cash + Σ position.quantity × live price.
type LeaderboardEntry struct {
	Username string          `json:"username"`
	Value    decimal.Decimal `json:"value"`
}

// UserSummary is the projection used for leaderboard computation:
// {username, positions, cash} across all users.
type UserSummary struct {
	Username  string          `json:"username"`
	Cash      decimal.Decimal `json:"cash"`
	Positions []Position      `json:"positions"`
}
