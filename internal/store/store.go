// Package store defines the user persistence interface for the trading
// engine. Implementations include PostgreSQL (source of truth), a Redis
// read-through cache wrapper, and in-memory (for testing).
//
// Users are stored and saved as whole documents: Save writes cash,
// positions, ledger, and watchlist in a single statement. There is no
// finer-grained transactional commit across them.
package store

import (
	"context"
	"errors"

	"github.com/papertrade/engine/internal/model"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("store: user not found")

	// ErrDuplicateUsername is returned when creating a user whose
	// username is already taken.
	ErrDuplicateUsername = errors.New("store: username already exists")
)

// UserStore is the user repository.
type UserStore interface {
	// Create persists a new user.
	Create(ctx context.Context, u *model.User) error

	// FindByID retrieves a user by ID.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername retrieves a user by username.
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindAllProjected returns the {username, positions, cash} projection
	// of every user, for leaderboard computation.
	FindAllProjected(ctx context.Context) ([]model.UserSummary, error)

	// Save writes the whole user document back.
	Save(ctx context.Context, u *model.User) error
}
