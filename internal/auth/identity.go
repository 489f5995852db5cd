// Package auth resolves the caller's identity from the trusted header set
// by the authentication proxy in front of the engine. The engine trusts the
// proxy; there is no credential verification here.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/httpx"
	"github.com/papertrade/engine/internal/model"
	"github.com/papertrade/engine/internal/store"
)

type contextKey struct{}

// Identity resolves usernames to user IDs, provisioning new users with the
// configured starting cash on first contact.
type Identity struct {
	store        store.UserStore
	header       string
	startingCash decimal.Decimal
}

// NewIdentity creates the identity resolver. header is the trusted header
// carrying the authenticated username.
func NewIdentity(st store.UserStore, header string, startingCash decimal.Decimal) *Identity {
	return &Identity{
		store:        st,
		header:       header,
		startingCash: startingCash,
	}
}

// Middleware authenticates the request from the trusted header and stores
// the resolved user ID in the request context.
func (i *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get(i.header)
		if username == "" {
			httpx.Error(w, http.StatusUnauthorized, "No username provided")
			return
		}

		userID, err := i.getOrCreate(r.Context(), username)
		if err != nil {
			slog.Error("identity resolution failed", "username", username, "err", err)
			httpx.Error(w, http.StatusInternalServerError, "Failed to get or create user.")
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getOrCreate returns the user ID for username, provisioning a fresh user
// with the starting cash when none exists.
func (i *Identity) getOrCreate(ctx context.Context, username string) (string, error) {
	u, err := i.store.FindByUsername(ctx, username)
	if err == nil {
		return u.ID, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return "", err
	}

	u = &model.User{
		ID:        uuid.New().String(),
		Username:  username,
		Cash:      i.startingCash,
		Positions: []model.Position{},
		Ledger:    []model.Transaction{},
		Watchlist: []string{},
		CreatedAt: time.Now().UTC(),
	}
	err = i.store.Create(ctx, u)
	if errors.Is(err, store.ErrDuplicateUsername) {
		// Lost a provisioning race; the winner's document is authoritative.
		existing, ferr := i.store.FindByUsername(ctx, username)
		if ferr != nil {
			return "", ferr
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", err
	}

	slog.Info("user provisioned", "username", username, "id", u.ID)
	return u.ID, nil
}

// UserID returns the authenticated user ID stored by Middleware, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
