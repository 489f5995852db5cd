package quote_test

import (
	"testing"
	"time"

	"github.com/papertrade/engine/internal/quote"
)

func TestCache_HitWithinTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	c := quote.NewCache[string](60*time.Second, func() time.Time { return now })

	c.Set("AAPL", "cached")

	now = now.Add(59 * time.Second)
	v, ok := c.Get("AAPL")
	if !ok {
		t.Fatal("expected cache hit within TTL")
	}
	if v != "cached" {
		t.Errorf("expected cached value, got %q", v)
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	c := quote.NewCache[string](60*time.Second, func() time.Time { return now })

	c.Set("AAPL", "cached")

	now = now.Add(61 * time.Second)
	if _, ok := c.Get("AAPL"); ok {
		t.Error("expected cache miss after TTL expiry")
	}
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := quote.NewCache[int](60*time.Second, nil)
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_SetRefreshesExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := quote.NewCache[int](60*time.Second, func() time.Time { return now })

	c.Set("k", 1)
	now = now.Add(50 * time.Second)
	c.Set("k", 2)
	now = now.Add(50 * time.Second)

	v, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit: second Set should refresh expiry")
	}
	if v != 2 {
		t.Errorf("expected refreshed value 2, got %d", v)
	}
}
