// ABOUTME: Gin HTTP server exposing the feed cache over JSON and server-sent events
// ABOUTME: Sets up middleware, routes, and a context-bound listen loop with graceful shutdown

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harper/feedsync/internal/feedstate"
	"github.com/harper/feedsync/internal/syncer"
)

const shutdownTimeout = 10 * time.Second

// Server serves the cache through a syncer and a started controller.
type Server struct {
	handler *Handler
	engine  *gin.Engine
	logger  *slog.Logger
}

// NewServer builds the gin engine with all routes configured.
func NewServer(s *syncer.Syncer, ctrl *feedstate.Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandler(s, ctrl, logger)
	return &Server{
		handler: h,
		engine:  newEngine(h, logger),
		logger:  logger,
	}
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func newEngine(h *Handler, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			logger.Debug("http request",
				"client", param.ClientIP,
				"method", param.Method,
				"path", param.Path,
				"status", param.StatusCode,
				"latency", param.Latency,
				"error", param.ErrorMessage,
			)
			return ""
		},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, h)

	return r
}

func setupRoutes(r *gin.Engine, h *Handler) {
	r.GET("/health", h.HealthCheck)
	r.GET("/state", h.GetState)
	r.GET("/items", h.ListItems)
	r.GET("/items/:id", h.GetItem)
	r.POST("/refresh", h.Refresh)
	r.GET("/events", h.Events)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "feedsync",
			"endpoints": map[string]string{
				"health":  "/health",
				"state":   "/state",
				"items":   "/items?since=<period>&unseen=<bool>&premium=<bool>&limit=<n>",
				"item":    "/items/:id",
				"refresh": "/refresh?wait=<bool> (POST)",
				"events":  "/events (text/event-stream)",
			},
		})
	})
}

// Run listens on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	s.logger.Info("http listening", "addr", addr)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
