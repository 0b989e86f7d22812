// Package server provides the HTTP ingestion gateway for continuityd.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/apikey"
	"github.com/fyrsmithlabs/continuityd/internal/bridge"
	"github.com/fyrsmithlabs/continuityd/internal/quota"
	"github.com/fyrsmithlabs/continuityd/internal/store"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RateLimitEnabled turns on the per-IP ingestion rate limiter.
	RateLimitEnabled bool
	// RateLimitRPS is sustained requests per second per client IP.
	RateLimitRPS float64
	// RateLimitBurst is the short-term burst allowance.
	RateLimitBurst int
}

// Server provides the HTTP endpoints for continuityd.
type Server struct {
	echo    *echo.Echo
	store   *store.Store
	keys    apikey.Service
	quota   *quota.Enforcer
	bridge  *bridge.Service
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// NewServer creates the gateway.
func NewServer(st *store.Store, keys apikey.Service, qe *quota.Enforcer, br *bridge.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if keys == nil {
		return nil, errors.New("apikey service is required")
	}
	if qe == nil {
		return nil, errors.New("quota enforcer is required")
	}
	if br == nil {
		return nil, errors.New("bridge service is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9191}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	if cfg.RateLimitEnabled {
		e.Use(rateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	s := &Server{
		echo:    e,
		store:   st,
		keys:    keys,
		quota:   qe,
		bridge:  br,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(logger),
	}
	e.Use(s.metrics.Middleware())

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints. Every route under api except
// the health check passes through the credential middleware; the credential
// manager is the single source of truth for validity.
func (s *Server) registerRoutes() {
	s.echo.GET("/api/health", s.handleHealth)

	api := s.echo.Group("/api", s.requireAPIKey)

	api.POST("/snapshots/sync", s.handleSnapshotSync)
	api.POST("/snapshots/bulk-sync", s.handleSnapshotBulkSync)
	api.GET("/snapshots", s.handleSnapshotList)
	api.DELETE("/snapshots/:id", s.handleSnapshotDelete)

	api.POST("/memories/sync", s.handleMemorySync)
	api.GET("/memories", s.handleMemoryList)
	api.GET("/memories/search", s.handleMemorySearch)
	api.POST("/memories/:id/recall", s.handleMemoryRecall)
	api.DELETE("/memories/:id", s.handleMemoryDelete)

	api.POST("/narratives/sync", s.handleNarrativeSync)

	api.GET("/preferences", s.handlePreferenceList)
	api.PUT("/preferences/:key", s.handlePreferenceSet)

	api.GET("/context-bridge", s.handleContextBridge)

	api.GET("/keys", s.handleKeyList)
	api.POST("/keys/:id/revoke", s.handleKeyRevoke)
}

// Echo exposes the router so the daemon can attach the metrics handler.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// errorResponse is the uniform failure body.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Success: false, Error: msg})
}

// storageError logs the underlying failure and reports an opaque 500.
func (s *Server) storageError(c echo.Context, op string, err error) error {
	s.logger.Error("storage failure",
		zap.String("op", op),
		zap.Error(err),
	)
	return fail(c, http.StatusInternalServerError, "storage failure")
}
