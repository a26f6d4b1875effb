// Package api exposes the tracker over HTTP with gin.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitetime/internal/clock"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr string
}

// Deps holds what the routes operate on. Recorder may be nil when no tick
// loop runs in this process; signal routes then answer 503.
type Deps struct {
	Tracker  *usage.Tracker
	Backups  *usage.Backups
	Recorder *usage.Recorder
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// Server represents the API HTTP server.
type Server struct {
	config   Config
	server   *http.Server
	router   *gin.Engine
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Deps) *Server {
	// Set Gin mode
	if deps.Logger.GetLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	deps.Logger = deps.Logger.With().Str("component", "api").Logger()

	// Create Gin router without default middleware (we use custom JSON logging)
	router := gin.New()

	// Add recovery middleware (handles panics)
	router.Use(gin.Recovery())

	SetupRoutes(router, deps)

	return &Server{
		config: cfg,
		router: router,
		logger: deps.Logger,
		server: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	go func() {
		s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server failed")
		}
	}()
	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info().Msg("Stopping API server")
	return s.server.Shutdown(ctx)
}
