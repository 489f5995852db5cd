// Package metrics provides Prometheus instrumentation for the trading engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersTotal counts executed orders, partitioned by side.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_orders_total",
		Help: "Total number of orders executed",
	}, []string{"side"})

	// OrderRejections counts rejected orders by reason.
	OrderRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_order_rejections_total",
		Help: "Orders rejected before mutation, by reason",
	}, []string{"reason"})

	// OrderLatency tracks end-to-end order execution latency.
	OrderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrade_order_latency_seconds",
		Help:    "Order execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// QuoteCacheHits counts quote cache hits.
	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_quote_cache_hits_total",
		Help: "Quote lookups served from the TTL cache",
	})

	// QuoteCacheMisses counts quote cache misses.
	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_quote_cache_misses_total",
		Help: "Quote lookups that reached the provider",
	})

	// ProviderLookups counts provider lookups by result kind.
	ProviderLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_provider_lookups_total",
		Help: "Provider quote lookups by result kind",
	}, []string{"result"})

	// LeaderboardRebuilds counts full leaderboard recomputations.
	LeaderboardRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_leaderboard_rebuilds_total",
		Help: "Leaderboard snapshot recomputations (cache misses)",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrade_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrade_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
