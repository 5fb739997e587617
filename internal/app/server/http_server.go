package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout bounds a graceful stop before connections are cut
const DefaultShutdownTimeout = 30 * time.Second

// Config holds HTTP server configuration
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// HTTPServer serves the pricing API and handles graceful shutdown
type HTTPServer struct {
	server  *http.Server
	config  Config
	logger  *zap.Logger
	signals []os.Signal
}

// NewHTTPServer creates a server for handler
func NewHTTPServer(cfg Config, handler http.Handler, logger *zap.Logger) *HTTPServer {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Serve listens on the configured address and blocks until the server
// fails, ctx is cancelled or a termination signal arrives.
func (s *HTTPServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener is Serve on an existing listener
func (s *HTTPServer) ServeListener(ctx context.Context, listener net.Listener) error {
	s.logger.Info("HTTP server starting",
		zap.String("address", listener.Addr().String()))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.server.Serve(listener)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, s.signals...)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("HTTP server shutting down due to context cancellation")

	case sig := <-shutdown:
		s.logger.Info("HTTP server shutting down due to signal",
			zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Graceful shutdown timeout, forcing stop", zap.Error(err))
		return s.server.Close()
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

// Shutdown stops the server if Serve has not already done so
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
