// Package httpapi exposes the orchestrator's web surface: the status
// resource polled by the desktop UI, health endpoints, prometheus
// metrics and the noVNC static files. Handlers never spawn or
// terminate processes; they only read liveness snapshots.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osamabinlikhon/xfce-desktop/pkg/desktop"
)

// Options configures the HTTP server.
type Options struct {
	// Listen is the [host]:port to bind.
	Listen string

	// NovncDir is the directory holding the noVNC client files,
	// served under /novnc. Empty disables static serving and the
	// root redirect.
	NovncDir string

	// Gatherer provides the /metrics endpoint. Nil disables it.
	Gatherer prometheus.Gatherer

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server wraps the gin engine serving the orchestrator's HTTP surface.
type Server struct {
	prober *desktop.Prober
	router *gin.Engine
	server *http.Server
	opts   Options
	logger *slog.Logger
}

// NewServer creates the HTTP server. Serving may begin immediately,
// even mid-bootstrap: the status resource is well-defined for the
// not-yet-ready state, so no startup delay is needed.
func NewServer(prober *desktop.Prober, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		prober: prober,
		router: router,
		opts:   opts,
		logger: logger,
		server: &http.Server{
			Addr:              opts.Listen,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/api/status", s.handleStatus)
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/readyz", s.handleReadyz)

	if s.opts.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			s.opts.Gatherer,
			promhttp.HandlerOpts{},
		)))
	}

	if s.opts.NovncDir != "" {
		s.router.Static("/novnc", s.opts.NovncDir)
		s.router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, "/novnc/vnc.html")
		})
	}
}

// handleStatus returns the per-role liveness snapshot. A probe failure
// (the process table itself could not be queried) is a 500 with an
// error object, distinct from roles merely being down.
func (s *Server) handleStatus(c *gin.Context) {
	snap, err := s.prober.Probe()
	if err != nil {
		s.logger.Error("status probe failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleHealthz reports the orchestrator's own liveness, not the
// desktop's.
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleReadyz reports the aggregate desktop readiness.
func (s *Server) handleReadyz(c *gin.Context) {
	snap, err := s.prober.Probe()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unknown", "error": err.Error()})
		return
	}
	if !snap.Ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("http server listening", "addr", s.opts.Listen)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
