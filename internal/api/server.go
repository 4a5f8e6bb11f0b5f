// Package api exposes the governance engine over HTTP JSON.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/governstack/govern-trust/internal/config"
	"github.com/governstack/govern-trust/internal/services"
)

// Server wraps the HTTP server and lifecycle helpers.
type Server struct {
	cfg      config.ServerConfig
	logger   *slog.Logger
	httpSrv  *http.Server
	listener net.Listener
}

// NewServer constructs an HTTP server bound to the configured address.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, service *services.TrustService) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	handler := NewHandler(logger, service)
	httpSrv := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		logger:   logger,
		httpSrv:  httpSrv,
		listener: lis,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Address
	}
	return s.listener.Addr().String()
}

// Start serves incoming requests until Shutdown is invoked.
func (s *Server) Start() error {
	if s.httpSrv == nil || s.listener == nil {
		return fmt.Errorf("server not initialised")
	}
	if err := s.httpSrv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown attempts a graceful shutdown, closing hard when ctx expires.
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpSrv == nil {
		return
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown incomplete, forcing close", "error", err)
		_ = s.httpSrv.Close()
	}
}
