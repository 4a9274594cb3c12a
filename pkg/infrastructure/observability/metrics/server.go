package metrics

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MetricsPath is where the Prometheus exposition is served.
const MetricsPath = "/metrics"

const shutdownTimeout = 5 * time.Second

// Handler serves the metrics registry plus a /health probe.
func (m *DeployMetrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Server exposes DeployMetrics over HTTP.
type Server struct {
	metrics *DeployMetrics
	addr    string
	logger  zerolog.Logger
}

// NewServer creates a metrics server listening on host:port.
func NewServer(m *DeployMetrics, host string, port int, logger zerolog.Logger) *Server {
	return &Server{
		metrics: m,
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		logger:  logger.With().Str("component", "metrics_server").Logger(),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Serve listens until ctx is cancelled, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.addr)
	}
	return s.serve(ctx, listener)
}

func (s *Server) serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Str("path", MetricsPath).Msg("Starting metrics HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "metrics server shutdown failed")
		}
		s.logger.Info().Msg("Metrics HTTP server stopped")
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return errors.Wrap(err, "metrics server failed")
	}
}
