// Package lifecycle provides server lifecycle management functionality
package lifecycle

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/forcekit/deploy-assist/pkg/domain/errors"
	"github.com/forcekit/deploy-assist/pkg/infrastructure/observability/metrics"
	"github.com/forcekit/deploy-assist/pkg/service/bootstrap"
	"github.com/forcekit/deploy-assist/pkg/service/config"
)

// Manager handles server startup and shutdown logic
type Manager struct {
	logger       zerolog.Logger
	config       *config.Config
	bootstrapper *bootstrap.Bootstrapper
	transports   *TransportRegistry
	startTime    time.Time

	mu               sync.Mutex
	mcpServer        *server.MCPServer
	isMcpInitialized bool
	isShuttingDown   bool
	cancel           context.CancelFunc
	metricsDone      chan struct{}
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithTransport registers or replaces a transport.
func WithTransport(transportType TransportType, transport Transport) ManagerOption {
	return func(m *Manager) { m.transports.Register(transportType, transport) }
}

// NewManager creates a manager with the stdio and HTTP transports registered.
func NewManager(logger zerolog.Logger, cfg *config.Config, b *bootstrap.Bootstrapper, opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:       logger.With().Str("component", "lifecycle").Logger(),
		config:       cfg,
		bootstrapper: b,
		transports:   NewTransportRegistry(logger),
		startTime:    time.Now(),
	}
	m.transports.Register(TransportTypeStdio, NewStdioTransport(os.Stdin, os.Stdout, logger))
	m.transports.Register(TransportTypeHTTP, NewHTTPTransport(cfg.HTTPHost, cfg.HTTPPort, logger))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize creates the MCP server and registers its tools. It is idempotent.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked()
}

func (m *Manager) initializeLocked() error {
	if m.isMcpInitialized {
		return nil
	}
	m.logger.Info().Msg("Initializing mcp-go server")

	mcpServer := m.bootstrapper.CreateMCPServer()
	if mcpServer == nil {
		return errors.New(errors.CodeInternalError, "lifecycle", "failed to create mcp-go server", nil)
	}
	if err := m.bootstrapper.RegisterComponents(mcpServer); err != nil {
		return err
	}

	m.mcpServer = mcpServer
	m.isMcpInitialized = true
	m.logger.Info().Msg("MCP server initialized")
	return nil
}

// Start initializes the server, starts the metrics endpoint when enabled and serves the
// configured transport until ctx is cancelled or Shutdown is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.isShuttingDown {
		m.mu.Unlock()
		return errors.New(errors.CodeInternalError, "lifecycle", "server is shutting down", nil)
	}
	if err := m.initializeLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	mcpServer := m.mcpServer
	if m.config.TelemetryEnabled {
		m.metricsDone = make(chan struct{})
		go m.serveMetrics(runCtx, m.metricsDone)
	}
	m.mu.Unlock()
	defer cancel()

	m.logger.Info().
		Str("service", m.config.ServiceName).
		Str("version", m.config.ServiceVersion).
		Str("transport", m.config.TransportType).
		Msg("Starting MCP server")

	return m.transports.Start(runCtx, TransportType(m.config.TransportType), mcpServer)
}

func (m *Manager) serveMetrics(ctx context.Context, done chan struct{}) {
	defer close(done)
	srv := metrics.NewServer(m.bootstrapper.Metrics(), m.config.HTTPHost, m.config.TelemetryPort, m.logger)
	if err := srv.Serve(ctx); err != nil {
		m.logger.Error().Err(err).Str("addr", srv.Addr()).Msg("Metrics endpoint stopped")
	}
}

// Shutdown stops the running transport and the metrics endpoint. Calls after the first are
// no-ops.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.isShuttingDown {
		m.mu.Unlock()
		return nil
	}
	m.isShuttingDown = true
	cancel := m.cancel
	metricsDone := m.metricsDone
	m.mu.Unlock()

	m.logger.Info().Dur("uptime", m.Uptime()).Msg("Gracefully shutting down MCP server")
	if cancel != nil {
		cancel()
	}

	if metricsDone != nil {
		select {
		case <-metricsDone:
		case <-ctx.Done():
			m.logger.Warn().Err(ctx.Err()).Msg("Shutdown cancelled by context")
			return ctx.Err()
		}
	}

	m.logger.Info().Msg("MCP server shutdown complete")
	return nil
}

// MCPServer returns the initialized server, or nil before Initialize.
func (m *Manager) MCPServer() *server.MCPServer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mcpServer
}

// Uptime returns the time since the manager was created.
func (m *Manager) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// IsInitialized returns whether the MCP server is initialized
func (m *Manager) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isMcpInitialized
}

// IsShuttingDown returns whether the server is in shutdown process
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isShuttingDown
}
