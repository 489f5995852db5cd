package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/papertrade/engine/internal/model"
)

// CachedStore wraps a primary UserStore (PostgreSQL) with a Redis
// read-through cache. Writes go to the primary store and invalidate the
// cache; ID reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary UserStore
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary UserStore, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) Create(ctx context.Context, u *model.User) error {
	if err := s.primary.Create(ctx, u); err != nil {
		return err
	}
	s.cacheUser(ctx, u)
	return nil
}

func (s *CachedStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	data, err := s.rdb.Get(ctx, userKey(id)).Bytes()
	if err == nil {
		var u model.User
		if json.Unmarshal(data, &u) == nil {
			return &u, nil
		}
	}

	u, err := s.primary.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheUser(ctx, u)
	return u, nil
}

// Save writes to the primary and invalidates the cached document; the next
// read re-populates it.
func (s *CachedStore) Save(ctx context.Context, u *model.User) error {
	if err := s.primary.Save(ctx, u); err != nil {
		return err
	}
	s.rdb.Del(ctx, userKey(u.ID))
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.primary.FindByUsername(ctx, username)
}

func (s *CachedStore) FindAllProjected(ctx context.Context) ([]model.UserSummary, error) {
	return s.primary.FindAllProjected(ctx)
}

func (s *CachedStore) cacheUser(ctx context.Context, u *model.User) {
	if data, err := json.Marshal(u); err == nil {
		s.rdb.Set(ctx, userKey(u.ID), data, s.ttl)
	}
}

func userKey(id string) string { return fmt.Sprintf("user:%s", id) }
