package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/papertrade/engine/internal/model"
)

// MemoryStore implements UserStore with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*model.User // by ID
	byName map[string]string      // username → ID
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*model.User),
		byName: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[u.Username]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUsername, u.Username)
	}
	s.users[u.ID] = cloneUser(u)
	s.byName[u.Username] = u.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrUserNotFound, id)
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return cloneUser(s.users[id]), nil
}

func (s *MemoryStore) FindAllProjected(_ context.Context) ([]model.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]model.UserSummary, 0, len(s.users))
	for _, u := range s.users {
		summaries = append(summaries, model.UserSummary{
			Username:  u.Username,
			Cash:      u.Cash,
			Positions: append([]model.Position(nil), u.Positions...),
		})
	}
	return summaries, nil
}

func (s *MemoryStore) Save(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return fmt.Errorf("%w: id %s", ErrUserNotFound, u.ID)
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

// cloneUser deep-copies a user so callers cannot mutate stored state.
func cloneUser(u *model.User) *model.User {
	c := *u
	c.Positions = append([]model.Position(nil), u.Positions...)
	c.Ledger = append([]model.Transaction(nil), u.Ledger...)
	c.Watchlist = append([]string(nil), u.Watchlist...)
	return &c
}
