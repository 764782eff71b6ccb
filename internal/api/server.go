// Package api serves the task pane: report and merge triggers, the run
// ledger, and a server-sent events stream of run progress.
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ldaengine/app"
	"ldaengine/domain/roster"
	"ldaengine/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP API.
type Server struct {
	router   *gin.Engine
	svc      *app.RetentionService
	hub      *SSEHub
	settings roster.Settings
	workbook string
	logger   *zap.Logger
}

// Options configures a Server.
type Options struct {
	// Settings apply when a request carries none.
	Settings roster.Settings
	// Workbook is used when a request names none.
	Workbook string
	GinMode  string
}

// NewServer builds the router.
func NewServer(svc *app.RetentionService, hub *SSEHub, opts Options, logger *zap.Logger) *Server {
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}
	s := &Server{
		router:   gin.New(),
		svc:      svc,
		hub:      hub,
		settings: opts.Settings,
		workbook: opts.Workbook,
		logger:   logging.OrNop(logger).Named("API"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	{
		api.POST("/reports/lda", s.handleReport)
		api.POST("/master-list/merge", s.handleMerge)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
		api.GET("/runs/:id/summary", s.handleRunSummary)
		api.GET("/events", s.hub.HandleSSE)
	}
}

// requestLogger logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// streams would hold shutdown open until their clients leave
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
