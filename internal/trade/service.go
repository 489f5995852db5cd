// Package trade implements order execution: validation, liquidity gating,
// fee computation, and the resulting cash/position/ledger mutation.
//
// An order runs Validate → Price → Compute → Mutate → Append → Persist.
// Every validation happens before any mutation; a persistence failure after
// mutation is reported to the caller but the in-memory changes are not
// rolled back (the document was never written, so stored state is intact).
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/liquidity"
	"github.com/papertrade/engine/internal/metrics"
	"github.com/papertrade/engine/internal/model"
	"github.com/papertrade/engine/internal/quote"
	"github.com/papertrade/engine/internal/store"
)

var (
	// ErrInsufficientFunds is returned when the user's cash cannot cover
	// the order (principal plus fee in quantity mode, the stated amount
	// in amount mode).
	ErrInsufficientFunds = errors.New("trade: insufficient funds")

	// ErrInsufficientShares is returned when a sell requests more than
	// the total quantity owned across all positions for the symbol.
	ErrInsufficientShares = errors.New("trade: insufficient shares")

	// ErrInvalidOrder is returned for non-positive quantities or amounts.
	ErrInvalidOrder = errors.New("trade: invalid order")
)

// OrderMode discriminates the two buy input modes.
type OrderMode int

const (
	// ByQuantity: the caller states a share quantity; the fee is charged
	// on top of the principal (exclusive).
	ByQuantity OrderMode = iota

	// ByAmount: the caller states the exact cash to spend; the fee comes
	// out of that amount (inclusive), reducing the shares received.
	ByAmount
)

// OrderRequest is a tagged buy request: exactly one of Quantity or Amount
// is meaningful, selected by Mode.
type OrderRequest struct {
	Mode     OrderMode
	Quantity decimal.Decimal // Mode == ByQuantity
	Amount   decimal.Decimal // Mode == ByAmount
}

// Service executes orders against the user store using live quotes.
type Service struct {
	store   store.UserStore
	oracle  *quote.Oracle
	gate    *liquidity.Gate
	feeRate decimal.Decimal
	locks   *userLocks // nil when per-user serialization is disabled
	hub     *WSHub     // optional order feed; nil disables broadcasting
}

// NewService creates an order execution service. serialize turns on the
// per-user mutex; disabling it reproduces the original unsynchronized
// read-modify-write, where concurrent orders for one user can interleave.
// Pass nil for hub if order broadcasting is not needed.
func NewService(st store.UserStore, oracle *quote.Oracle, gate *liquidity.Gate,
	feeRate decimal.Decimal, serialize bool, hub *WSHub) *Service {
	s := &Service{
		store:   st,
		oracle:  oracle,
		gate:    gate,
		feeRate: feeRate,
		hub:     hub,
	}
	if serialize {
		s.locks = newUserLocks()
	}
	return s
}

// Buy executes a buy order for userID against a live quote for symbol.
func (s *Service) Buy(ctx context.Context, userID, symbol string, order OrderRequest) error {
	start := time.Now()

	switch order.Mode {
	case ByQuantity:
		if !order.Quantity.IsPositive() {
			return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
		}
	case ByAmount:
		if !order.Amount.IsPositive() {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown order mode", ErrInvalidOrder)
	}

	q, err := s.oracle.FetchQuote(ctx, symbol)
	if err != nil {
		return err
	}
	// A provider payload can carry a zero price (missing field); an order
	// must never execute against one.
	if !q.Price.IsPositive() {
		return fmt.Errorf("%w: %s: no usable price", quote.ErrNotFound, symbol)
	}

	if err := s.gate.Check(q); err != nil {
		metrics.OrderRejections.WithLabelValues("liquidity").Inc()
		return err
	}

	if s.locks != nil {
		unlock := s.locks.lock(userID)
		defer unlock()
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	var (
		qty decimal.Decimal
		fee decimal.Decimal
	)
	switch order.Mode {
	case ByAmount:
		// Inclusive fee: the stated amount leaves the account exactly;
		// the fee reduces the shares received.
		fee = order.Amount.Mul(s.feeRate)
		qty = order.Amount.Sub(fee).Div(q.Price)
		if user.Cash.LessThan(order.Amount) {
			metrics.OrderRejections.WithLabelValues("funds").Inc()
			return fmt.Errorf("%w: cash %s < amount %s", ErrInsufficientFunds, user.Cash, order.Amount)
		}
		user.Cash = user.Cash.Sub(order.Amount)

	default: // ByQuantity
		// Exclusive fee: charged on top of the principal.
		qty = order.Quantity
		gross := q.Price.Mul(qty)
		fee = gross.Mul(s.feeRate)
		required := gross.Add(fee)
		if user.Cash.LessThan(required) {
			metrics.OrderRejections.WithLabelValues("funds").Inc()
			return fmt.Errorf("%w: cash %s < required %s", ErrInsufficientFunds, user.Cash, required)
		}
		user.Cash = user.Cash.Sub(required)
	}

	now := time.Now().UTC()
	user.Ledger = append(user.Ledger, model.Transaction{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Price:     q.Price,
		Quantity:  qty,
		Fee:       fee,
		Type:      model.TxBuy,
		Timestamp: now,
	})

	s.mergePosition(user, symbol, qty, q.Price, now)

	if err := s.store.Save(ctx, user); err != nil {
		return fmt.Errorf("persist buy for %s: %w", userID, err)
	}

	metrics.OrdersTotal.WithLabelValues(model.TxBuy).Inc()
	metrics.OrderLatency.WithLabelValues(model.TxBuy).Observe(time.Since(start).Seconds())

	slog.Info("buy executed",
		"user", userID,
		"symbol", symbol,
		"qty", qty.String(),
		"price", q.Price.String(),
		"fee", fee.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "order_executed",
			Symbol:   symbol,
			Side:     model.TxBuy,
			Quantity: qty.String(),
			Price:    q.Price.String(),
		})
	}
	return nil
}

// mergePosition accumulates a buy into the existing position for symbol
// using weighted-average cost basis, or opens a new one.
func (s *Service) mergePosition(user *model.User, symbol string, qty, price decimal.Decimal, now time.Time) {
	for i := range user.Positions {
		p := &user.Positions[i]
		if p.Symbol != symbol {
			continue
		}
		// newAvg = (oldAvg×oldQty + price×qty) / (oldQty+qty)
		totalQty := p.Quantity.Add(qty)
		p.PurchasePrice = p.PurchasePrice.Mul(p.Quantity).
			Add(price.Mul(qty)).
			Div(totalQty)
		p.Quantity = totalQty
		return
	}
	user.Positions = append(user.Positions, model.Position{
		Symbol:        symbol,
		Quantity:      qty,
		PurchasePrice: price,
		PurchaseDate:  now,
	})
}

// Sell executes a sell order. The fee is always exclusive: proceeds
// credited are gross minus fee. Positions for the symbol are drained in
// storage order; fully drained positions are removed from the book.
func (s *Service) Sell(ctx context.Context, userID, symbol string, qty decimal.Decimal) error {
	start := time.Now()

	if !qty.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}

	q, err := s.oracle.FetchQuote(ctx, symbol)
	if err != nil {
		return err
	}
	if !q.Price.IsPositive() {
		return fmt.Errorf("%w: %s: no usable price", quote.ErrNotFound, symbol)
	}

	if s.locks != nil {
		unlock := s.locks.lock(userID)
		defer unlock()
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	owned := decimal.Zero
	for _, p := range user.Positions {
		if p.Symbol == symbol {
			owned = owned.Add(p.Quantity)
		}
	}
	if owned.LessThan(qty) {
		metrics.OrderRejections.WithLabelValues("shares").Inc()
		return fmt.Errorf("%w: owned %s < requested %s", ErrInsufficientShares, owned, qty)
	}

	gross := q.Price.Mul(qty)
	fee := gross.Mul(s.feeRate)
	user.Cash = user.Cash.Add(gross.Sub(fee))

	user.Ledger = append(user.Ledger, model.Transaction{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Price:     q.Price,
		Quantity:  qty,
		Fee:       fee,
		Type:      model.TxSell,
		Timestamp: time.Now().UTC(),
	})

	// Drain positions in insertion order. This is first-position-first,
	// not lot-optimized accounting.
	remaining := qty
	for i := 0; i < len(user.Positions); i++ {
		p := &user.Positions[i]
		if p.Symbol != symbol {
			continue
		}
		if p.Quantity.GreaterThan(remaining) {
			p.Quantity = p.Quantity.Sub(remaining)
			break
		}
		remaining = remaining.Sub(p.Quantity)
		user.Positions = append(user.Positions[:i], user.Positions[i+1:]...)
		i--
	}

	if err := s.store.Save(ctx, user); err != nil {
		return fmt.Errorf("persist sell for %s: %w", userID, err)
	}

	metrics.OrdersTotal.WithLabelValues(model.TxSell).Inc()
	metrics.OrderLatency.WithLabelValues(model.TxSell).Observe(time.Since(start).Seconds())

	slog.Info("sell executed",
		"user", userID,
		"symbol", symbol,
		"qty", qty.String(),
		"price", q.Price.String(),
		"fee", fee.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "order_executed",
			Symbol:   symbol,
			Side:     model.TxSell,
			Quantity: qty.String(),
			Price:    q.Price.String(),
		})
	}
	return nil
}
