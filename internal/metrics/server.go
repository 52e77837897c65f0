package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firestige.xyz/firestorm/internal/config"
	"firestige.xyz/firestorm/internal/log"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the default Prometheus registry over HTTP.
type Server struct {
	cfg    config.MetricsConfig
	server *http.Server
	ln     net.Listener
	log    log.Logger
}

// NewServer returns a server for cfg. An empty path serves /metrics.
func NewServer(cfg config.MetricsConfig) *Server {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	return &Server{
		cfg: cfg,
		log: log.GetLogger().WithFields(map[string]interface{}{
			"component": "metrics",
			"listen":    cfg.Listen,
			"path":      cfg.Path,
		}),
	}
}

// Start binds the listen address and serves in the background. Bind errors
// are returned here; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", s.cfg.Listen, err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, promhttp.Handler())
	s.ln = ln
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.log.WithField("addr", ln.Addr().String()).Info("metrics server listening")
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("metrics server stopped unexpectedly")
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop shuts the server down, waiting at most five seconds for open scrapes.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	s.log.Info("metrics server stopped")
	return nil
}
