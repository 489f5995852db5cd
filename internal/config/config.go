// Package config loads engine configuration from the environment.
// A .env file in the working directory is honored when present.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every tunable knob of the engine.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// QuoteAPIURL is the base URL of the external quote provider.
	QuoteAPIURL string

	// UsernameHeader is the trusted header set by the identity proxy.
	UsernameHeader string

	StartingCash decimal.Decimal
	TradeFeeRate decimal.Decimal

	MinDailyVolume       int64
	CryptoMinDailyVolume int64

	QuoteCacheTTL       time.Duration
	LeaderboardCacheTTL time.Duration

	QuoteBatchSize  int
	QuoteBatchPause time.Duration

	// SerializeUserOrders turns on the per-user mutex around order
	// execution. Off reproduces the original unsynchronized behavior for
	// compatibility testing.
	SerializeUserOrders bool
}

// Load reads configuration from the environment, applying defaults.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	return Config{
		Port:                 envString("PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		QuoteAPIURL:          envString("QUOTE_API_URL", "https://query1.finance.yahoo.com"),
		UsernameHeader:       envString("USERNAME_HEADER", "x-username"),
		StartingCash:         envDecimal("STARTING_CASH", "100000"),
		TradeFeeRate:         envDecimal("TRADE_FEE", "0.001"),
		MinDailyVolume:       envInt64("MIN_DAILY_VOLUME", 100_000),
		CryptoMinDailyVolume: envInt64("CRYPTO_MIN_DAILY_VOLUME", 1_000_000),
		QuoteCacheTTL:        envDuration("QUOTE_CACHE_TTL", 60*time.Second),
		LeaderboardCacheTTL:  envDuration("LEADERBOARD_CACHE_TTL", 600*time.Second),
		QuoteBatchSize:       envInt("QUOTE_BATCH_SIZE", 100),
		QuoteBatchPause:      envDuration("QUOTE_BATCH_PAUSE", 55*time.Millisecond),
		SerializeUserOrders:  envBool("SERIALIZE_USER_ORDERS", true),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", v)
		return def
	}
	return b
}

// envDuration accepts Go duration syntax ("55ms", "10m") or a bare number
// of seconds, matching how the original deployment expressed its TTLs.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
	return def
}

func envDecimal(key, def string) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		slog.Warn("invalid decimal in environment, using default", "key", key, "value", v)
		return decimal.RequireFromString(def)
	}
	return d
}
