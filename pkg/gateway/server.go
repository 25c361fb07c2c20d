package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/burrowlabs/burrow/pkg/config"
	"github.com/burrowlabs/burrow/pkg/log"
	"github.com/burrowlabs/burrow/pkg/metrics"
)

const shutdownGrace = 30 * time.Second

// Server runs the front door and the metrics endpoint as two listeners
// with a shared lifecycle.
type Server struct {
	cfg     *config.ServerConfig
	front   *http.Server
	metrics *http.Server
	logger  zerolog.Logger
}

// NewServer wires the gateway handler into its listeners.
func NewServer(cfg *config.ServerConfig, handler http.Handler) *Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())

	return &Server{
		cfg: cfg,
		front: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 30 * time.Second,
			IdleTimeout:       cfg.SocketIdleTimeout,
		},
		metrics: &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log.WithComponent("server"),
	}
}

// Run serves until ctx is canceled or a listener fails, then shuts both
// listeners down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info().Str("addr", s.front.Addr).Bool("tls", s.cfg.TLSCertFile != "").
			Msg("front door listening")
		var err error
		if s.cfg.TLSCertFile != "" {
			err = s.front.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			err = s.front.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("front door server failed: %w", err)
		}
	}()

	go func() {
		s.logger.Info().Str("addr", s.metrics.Addr).Msg("metrics endpoint listening")
		if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
	case err := <-errCh:
		s.shutdown()
		return err
	}

	s.shutdown()
	return nil
}

func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := s.front.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("front door shutdown was not clean")
	}
	if err := s.metrics.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("metrics shutdown was not clean")
	}
}
