package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the pricing metrics on their own listener, away from the
// public API port.
type Server struct {
	server *http.Server
	logger *zap.Logger

	once        sync.Once
	shutdownErr error
}

// NewServer creates a new Prometheus metrics server
func NewServer(addr string, logger *zap.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the mux served by the metrics server
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start serves metrics until ctx is done or Shutdown is called
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting Prometheus metrics server", zap.String("addr", s.server.Addr))

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the metrics server. Only the first call does any work.
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		s.logger.Info("Shutting down Prometheus metrics server")
		if err := s.server.Shutdown(ctx); err != nil {
			s.shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
		}
	})
	return s.shutdownErr
}
