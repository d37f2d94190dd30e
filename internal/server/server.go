package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/app"
	"github.com/bioarchive/studysearch/internal/auth"
	"github.com/bioarchive/studysearch/internal/common"
)

// Server hosts the HTTP surface
type Server struct {
	config    *common.Config
	app       *app.App
	validator auth.TokenValidator
	logger    arbor.ILogger

	httpServer *http.Server
}

// New creates the HTTP server over the application
func New(cfg *common.Config, application *app.App, logger arbor.ILogger) *Server {
	if logger == nil {
		logger = common.GetLogger()
	}

	s := &Server{
		config:    cfg,
		app:       application,
		validator: auth.NewStaticValidator(cfg),
		logger:    logger,
	}

	handler := s.withRecovery(s.withLogging(s.withPrincipal(s.setupRoutes())))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start serves until Shutdown; blocks
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
