// Package http provides the API server assembly: gin engine, middleware stack
// and route registration.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	executionHTTP "github.com/allisson/exactly-once/internal/execution/http"
	idempotencyHTTP "github.com/allisson/exactly-once/internal/idempotency/http"
	outboxHTTP "github.com/allisson/exactly-once/internal/outbox/http"
	sagaHTTP "github.com/allisson/exactly-once/internal/saga/http"
)

// Server represents the HTTP API server.
type Server struct {
	db     *sql.DB
	logger *slog.Logger
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server. Call SetupRouter before Start.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// RouterConfig carries the handlers and optional middleware wired into the router.
type RouterConfig struct {
	ExecutionHandler *executionHTTP.ExecutionHandler
	RecordHandler    *idempotencyHTTP.RecordHandler
	DLQHandler       *outboxHTTP.DLQHandler
	SagaHandler      *sagaHTTP.SagaHandler

	// IdempotencyMiddleware guards the v1 group; nil disables response replay.
	IdempotencyMiddleware gin.HandlerFunc
	// MetricsMiddleware records HTTP request metrics; nil disables it.
	MetricsMiddleware gin.HandlerFunc
	// RateLimitMiddleware throttles per-client requests; nil disables it.
	RateLimitMiddleware gin.HandlerFunc

	CORSEnabled      bool
	CORSAllowOrigins string
}

// SetupRouter assembles the gin engine with the middleware stack and all routes.
func (s *Server) SetupRouter(cfg RouterConfig) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if cfg.MetricsMiddleware != nil {
		router.Use(cfg.MetricsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if cfg.RateLimitMiddleware != nil {
		v1.Use(cfg.RateLimitMiddleware)
	}
	if cfg.IdempotencyMiddleware != nil {
		v1.Use(cfg.IdempotencyMiddleware)
	}

	if cfg.ExecutionHandler != nil {
		v1.POST("/orders", cfg.ExecutionHandler.SubmitOrderHandler)
		v1.POST("/signals", cfg.ExecutionHandler.GenerateSignalHandler)
		v1.GET("/executions/:id", cfg.ExecutionHandler.GetExecutionHandler)
		v1.POST("/executions/:id/cancel", cfg.ExecutionHandler.CancelExecutionHandler)
	}
	if cfg.RecordHandler != nil {
		v1.GET("/idempotency/:key", cfg.RecordHandler.GetHandler)
		v1.DELETE("/idempotency/:key", cfg.RecordHandler.DeleteHandler)
	}
	if cfg.DLQHandler != nil {
		v1.GET("/outbox/dlq", cfg.DLQHandler.ListHandler)
		v1.POST("/outbox/dlq/reprocess", cfg.DLQHandler.ReprocessHandler)
	}
	if cfg.SagaHandler != nil {
		v1.POST("/sagas/order-placement", cfg.SagaHandler.PlaceOrderHandler)
		v1.GET("/sagas/:id", cfg.SagaHandler.GetSagaHandler)
	}

	s.router = router
}

// GetHandler returns the configured router. Used by tests that mount the
// server in an httptest.Server.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		s.SetupRouter(RouterConfig{})
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can serve traffic, checking the
// database connection.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}
	status := http.StatusOK
	state := "ready"

	if s.db == nil {
		components["database"] = "error"
		status = http.StatusServiceUnavailable
		state = "not_ready"
	} else if err := s.db.PingContext(c.Request.Context()); err != nil {
		s.logger.Warn("readiness check failed", slog.Any("error", err))
		components["database"] = "error"
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}

	c.JSON(status, gin.H{
		"status":     state,
		"components": components,
	})
}
