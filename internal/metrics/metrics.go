// Package metrics provides Prometheus instrumentation for the FinGate gateway.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fingate",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fingate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// EnvelopesTotal counts routed envelopes by RPC method and outcome.
	EnvelopesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fingate",
			Name:      "envelopes_total",
			Help:      "Total routed envelopes by RPC method and outcome (ok or error code).",
		},
		[]string{"rpc_method", "outcome"},
	)

	// DispatchDuration observes end-to-end dispatch latency by namespace.
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fingate",
			Name:      "dispatch_duration_seconds",
			Help:      "Envelope dispatch duration in seconds by method namespace.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"namespace"},
	)

	// ActiveConnections tracks registered gateway connections by transport kind.
	ActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fingate",
			Name:      "active_connections",
			Help:      "Number of currently registered connections by transport kind.",
		},
		[]string{"kind"},
	)

	// BroadcastsTotal counts broadcast deliveries by result.
	BroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fingate",
			Name:      "broadcasts_total",
			Help:      "Total per-connection broadcast deliveries by result (delivered or pruned).",
		},
		[]string{"result"},
	)

	// AuthFailuresTotal counts failed authentication attempts by credential kind.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fingate",
			Name:      "auth_failures_total",
			Help:      "Total authentication failures by credential kind.",
		},
		[]string{"kind"},
	)

	// RateLimitedTotal counts requests denied by the rate limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fingate",
			Name:      "rate_limited_total",
			Help:      "Total requests denied by the per-identity rate limiter.",
		},
	)

	// FraudDecisionsTotal counts fraud scorer decisions by action.
	FraudDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fingate",
			Name:      "fraud_decisions_total",
			Help:      "Total fraud risk assessments by recommended action.",
		},
		[]string{"action"},
	)

	// AdvisorCallsTotal counts generative advisor calls by result.
	AdvisorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fingate",
			Name:      "advisor_calls_total",
			Help:      "Total advisor calls by result (ok, error, fallback).",
		},
		[]string{"result"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fingate", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fingate", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fingate", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		EnvelopesTotal,
		DispatchDuration,
		ActiveConnections,
		BroadcastsTotal,
		AuthFailuresTotal,
		RateLimitedTotal,
		FraudDecisionsTotal,
		AdvisorCallsTotal,
		DBOpenConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// Handler returns the Prometheus scrape handler for mounting at /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records request count and duration for every HTTP request.
// Uses the route pattern (c.FullPath) rather than the raw URL to keep
// label cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// StartDBStatsCollector periodically samples sql.DBStats and the runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits when
// ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}
