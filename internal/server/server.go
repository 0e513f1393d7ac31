// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/fingate/internal/advisor"
	"github.com/mbd888/fingate/internal/config"
	"github.com/mbd888/fingate/internal/conns"
	"github.com/mbd888/fingate/internal/dispatch"
	"github.com/mbd888/fingate/internal/events"
	"github.com/mbd888/fingate/internal/health"
	"github.com/mbd888/fingate/internal/idgen"
	"github.com/mbd888/fingate/internal/logging"
	"github.com/mbd888/fingate/internal/metrics"
	"github.com/mbd888/fingate/internal/realtime"
	"github.com/mbd888/fingate/internal/resources"
	"github.com/mbd888/fingate/internal/risk"
	"github.com/mbd888/fingate/internal/security"
	"github.com/mbd888/fingate/internal/store"
	"github.com/mbd888/fingate/internal/tools"
	"github.com/mbd888/fingate/internal/validation"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	repo         store.Repository
	gate         *security.Gate
	connRegistry *conns.Registry
	hub          *events.Hub
	scorer       *risk.Scorer
	advisor      *advisor.Client
	dispatcher   *dispatch.Dispatcher
	handler      *dispatch.Handler
	wsGateway    *realtime.Gateway
	checks       *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRepository sets a custom data repository (for testing)
func WithRepository(repo store.Repository) Option {
	return func(s *Server) {
		s.repo = repo
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
		checks: health.NewRegistry(),
	}

	// Apply options first (may set repo/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var riskStore risk.Store
	var capStore security.CapabilityStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		if s.repo == nil {
			s.repo = store.NewPostgresStore(db)
		}
		riskStore = risk.NewPostgresStore(db)
		capStore = security.NewPostgresCapabilityStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		if s.repo == nil {
			mem := store.NewMemoryStore()
			mem.SeedDemoData()
			s.repo = mem
		}
		riskStore = risk.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Security gate
	s.gate = security.NewGate(security.Config{
		TokenSecret:        cfg.JWTSecret,
		SessionTTL:         cfg.SessionTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		DevModeBypassAuth:  cfg.DevModeBypassAuth,
	}, security.Stores{Capabilities: capStore}, s.logger)
	if cfg.DevModeBypassAuth {
		s.logger.Warn("dev mode auth bypass is ENABLED; never run this in production")
	}

	// Connection registry and broadcast hub
	s.connRegistry = conns.NewRegistry(s.logger)
	s.hub = events.NewHub(s.connRegistry, cfg.HeartbeatInterval, s.logger)

	// Advisor (optional generative narratives for insights)
	if cfg.AdvisorURL != "" && cfg.IsProduction() {
		if err := security.ValidateEndpointURL(cfg.AdvisorURL); err != nil {
			return nil, fmt.Errorf("invalid ADVISOR_URL: %w", err)
		}
	}
	s.advisor = advisor.New(advisor.Config{
		URL:    cfg.AdvisorURL,
		APIKey: cfg.AdvisorAPIKey,
	}, s.logger)
	if cfg.AdvisorURL != "" {
		s.logger.Info("advisor backend configured")
	}

	// Fraud risk scorer
	s.scorer = risk.NewScorer(riskStore)

	// Tool catalog
	toolCatalog := tools.NewCatalog(s.logger)
	toolCatalog.Register(tools.NewLoanCalculator())
	toolCatalog.Register(tools.NewTaxCalculator())
	toolCatalog.Register(tools.NewSavingsCalculator(s.repo))
	toolCatalog.Register(tools.NewFraudTool(s.scorer, s.repo, s.hub))
	toolCatalog.Register(tools.NewInsightGenerator(s.repo, s.advisor))

	// Dispatch pipeline
	s.dispatcher = dispatch.NewDispatcher(
		s.gate,
		resources.NewCatalog(s.repo, s.logger),
		toolCatalog,
		s.connRegistry,
		s.logger,
	)
	s.handler = dispatch.NewHandler(s.dispatcher)
	s.wsGateway = realtime.NewGateway(s.handler, s.connRegistry, s.gate.Limiter(), s.logger)

	s.registerHealthChecks()

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func (s *Server) registerHealthChecks() {
	if s.db != nil {
		s.checks.Register("database", func(ctx context.Context) health.Status {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	}
	s.checks.Register("connections", func(ctx context.Context) health.Status {
		n := s.connRegistry.Count()
		return health.Status{Name: "connections", Healthy: true, Detail: fmt.Sprintf("%d active", n)}
	})
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request body size limit
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Status page
	s.router.GET("/", s.statusPageHandler)

	// WebSocket for duplex envelope streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.wsGateway.HandleWebSocket(c.Writer, c.Request)
	})

	// Gateway endpoints
	mcp := s.router.Group("/mcp")
	{
		mcp.POST("/request", s.requestHandler)
		mcp.GET("/info", s.infoHandler)
		mcp.GET("/health", s.healthHandler)
		mcp.POST("/demo/fraud", s.demoFraudHandler)
	}
}

// requestHandler handles POST /mcp/request: a one-shot connection that
// lives for exactly one envelope (or batch).
func (s *Server) requestHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body required",
		})
		return
	}

	connID := idgen.WithPrefix("req_")
	s.connRegistry.Register(connID, conns.KindOneShot, nil, c.ClientIP())
	defer s.connRegistry.Unregister(connID)

	response := s.handler.HandleRaw(c.Request.Context(), connID, body)
	if response == nil {
		// Notification: acknowledged, nothing to return.
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(http.StatusOK, "application/json", response)
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "FinGate",
		"description": "Financial data gateway with real-time streaming",
		"version":     dispatch.Version,
		"protocol":    "JSON-RPC 2.0",
		"endpoints": gin.H{
			"request":   "POST /mcp/request",
			"websocket": "GET /ws",
			"health":    "GET /mcp/health",
		},
		"authentication": []string{"bearer", "session", "api_key"},
	})
}

// demoFraudHandler broadcasts a synthetic fraud alert so demo clients
// can see the real-time path without producing a risky transaction.
func (s *Server) demoFraudHandler(c *gin.Context) {
	assessment := &risk.Assessment{
		TransactionID: "TXN999999",
		UserID:        "USR001",
		Score:         0.92,
		Severity:      "HIGH",
		Action:        risk.ActionBlock,
		Factors: []risk.Factor{
			{Name: "UNUSUAL_AMOUNT", Score: 0.30, Reason: "Amount far exceeds user average"},
			{Name: "SUSPICIOUS_MERCHANT", Score: 0.25, Reason: "Merchant matches risk keywords"},
			{Name: "UNUSUAL_TIME", Score: 0.20, Reason: "Transaction at unusual hour"},
		},
		Recommendation: "Block transaction and notify user",
		AlertTriggered: true,
		EvaluatedAt:    time.Now().UTC(),
	}
	s.hub.PublishFraudAlert(assessment)

	c.JSON(http.StatusOK, gin.H{
		"status":     "broadcast",
		"message":    "Demo fraud alert sent to all connected clients",
		"recipients": s.connRegistry.Count(),
	})
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   dispatch.Version,
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start broadcast hub (heartbeats + event pushes)
	go s.hub.Run(runCtx)

	// DB pool gauges
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Refuse new websocket upgrades while draining
	s.wsGateway.Shutdown()

	// Cancel the context for background goroutines (broadcast hub, gauges)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stop the rate limiter cleanup goroutine
	s.gate.Close()

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Hub returns the broadcast hub (for bridge transports)
func (s *Server) Hub() *events.Hub {
	return s.hub
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
