package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/papertrade/engine/internal/auth"
	"github.com/papertrade/engine/internal/config"
	"github.com/papertrade/engine/internal/leaderboard"
	"github.com/papertrade/engine/internal/liquidity"
	"github.com/papertrade/engine/internal/metrics"
	"github.com/papertrade/engine/internal/model"
	"github.com/papertrade/engine/internal/portfolio"
	"github.com/papertrade/engine/internal/quote"
	"github.com/papertrade/engine/internal/store"
	"github.com/papertrade/engine/internal/trade"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	// --- Initialize store ---
	var st store.UserStore
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Quote pipeline ---
	provider := quote.NewYahooClient(cfg.QuoteAPIURL)
	quoteCache := quote.NewCache[model.Quote](cfg.QuoteCacheTTL, nil)
	historyCache := quote.NewCache[[]quote.PricePoint](cfg.QuoteCacheTTL, nil)
	oracle := quote.NewOracle(provider, quoteCache)
	fetcher := quote.NewBatchFetcher(oracle, cfg.QuoteBatchSize, cfg.QuoteBatchPause, nil)

	// --- Services ---
	gate := liquidity.NewGate(cfg.MinDailyVolume, cfg.CryptoMinDailyVolume)

	wsHub := trade.NewWSHub()
	go wsHub.Run()

	tradeSvc := trade.NewService(st, oracle, gate, cfg.TradeFeeRate, cfg.SerializeUserOrders, wsHub)
	board := leaderboard.NewAggregator(st, fetcher, cfg.LeaderboardCacheTTL, nil)
	valuator := portfolio.NewValuator(st, oracle, board)
	userHandlers := portfolio.NewHandlers(st, valuator, oracle)
	marketHandlers := quote.NewHandlers(oracle, provider, historyCache, cfg.TradeFeeRate)
	identity := auth.NewIdentity(st, cfg.UsernameHeader, cfg.StartingCash)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+cfg.UsernameHeader)
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"paper-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time order events.
		r.Get("/ws", wsHub.HandleWS)

		// Public market data.
		r.Get("/stocks/search/{query}", marketHandlers.Search)
		r.Get("/stocks/fee", marketHandlers.GetFee)
		r.Get("/stocks/{symbol}/info", marketHandlers.GetInfo)
		r.Get("/stocks/{symbol}/historical", marketHandlers.GetHistorical)

		// Public leaderboard.
		r.Get("/leaderboard", board.GetLeaderboard)

		// Authenticated routes: identity resolved from the trusted header.
		r.Group(func(r chi.Router) {
			r.Use(identity.Middleware)

			r.Post("/stocks/{symbol}/buy", tradeSvc.BuyStock)
			r.Post("/stocks/{symbol}/sell", tradeSvc.SellStock)

			r.Get("/user/portfolio", userHandlers.GetPortfolio)
			r.Get("/user/holdings", userHandlers.GetHoldings)
			r.Get("/user/ledger", userHandlers.GetLedger)
			r.Get("/user/username", userHandlers.GetUsername)
			r.Get("/user/watchlist", userHandlers.GetWatchlist)
			r.Post("/user/watchlist/add/{symbol}", userHandlers.AddToWatchlist)
			r.Post("/user/watchlist/remove/{symbol}", userHandlers.RemoveFromWatchlist)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("paper-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down paper-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("paper-engine stopped")
}
