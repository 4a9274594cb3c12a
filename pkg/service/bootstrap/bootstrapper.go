// Package bootstrap provides server initialization and setup logic
package bootstrap

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/forcekit/deploy-assist/pkg/domain/errors"
	"github.com/forcekit/deploy-assist/pkg/infrastructure/observability/metrics"
	"github.com/forcekit/deploy-assist/pkg/infrastructure/sf"
	"github.com/forcekit/deploy-assist/pkg/service/config"
	deploysvc "github.com/forcekit/deploy-assist/pkg/service/deploy"
	"github.com/forcekit/deploy-assist/pkg/service/tools"
)

// Bootstrapper wires the sf adapters, the deploy handler and the tool registry together.
type Bootstrapper struct {
	logger  zerolog.Logger
	config  *config.Config
	runner  sf.CommandRunner
	homeDir string
	metrics *metrics.DeployMetrics

	handler *deploysvc.Handler
}

// Option customizes a Bootstrapper.
type Option func(*Bootstrapper)

// WithCommandRunner replaces the os/exec runner used for the sf CLI.
func WithCommandRunner(r sf.CommandRunner) Option {
	return func(b *Bootstrapper) { b.runner = r }
}

// WithHomeDir sets where the user-level sf configuration and aliases are read from.
func WithHomeDir(dir string) Option {
	return func(b *Bootstrapper) { b.homeDir = dir }
}

// NewBootstrapper creates a new bootstrapper instance
func NewBootstrapper(logger zerolog.Logger, cfg *config.Config, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		logger:  logger.With().Str("component", "bootstrapper").Logger(),
		config:  cfg,
		metrics: metrics.NewDeployMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.runner == nil {
		b.runner = sf.NewCommandRunner(logger)
	}
	return b
}

// Metrics returns the collector the deploy handler records into.
func (b *Bootstrapper) Metrics() *metrics.DeployMetrics {
	return b.metrics
}

// DeployHandler builds the deploy handler on first use.
func (b *Bootstrapper) DeployHandler() *deploysvc.Handler {
	if b.handler != nil {
		return b.handler
	}

	client := sf.NewClient(b.runner, b.config.SFBinary, b.logger)
	orgs := sf.NewOrgResolver(client)

	b.handler = deploysvc.NewHandler(deploysvc.Collaborators{
		Access:   sf.NewAllowList(b.config.AllowedOrgs, b.homeDir, b.logger),
		Orgs:     orgs,
		Projects: sf.ProjectResolver{},
		Builder:  sf.ComponentSetBuilder{},
		Tracker:  sf.NewSourceTracker(client),
		Deployer: sf.NewDeployer(client),
	}, b.logger, deploysvc.WithRecorder(b.metrics))

	b.logger.Debug().
		Str("sf_binary", b.config.SFBinary).
		Strs("allowed_orgs", b.config.AllowedOrgs).
		Msg("Deploy handler initialized")
	return b.handler
}

// ToolDependencies returns what the tool handlers need.
func (b *Bootstrapper) ToolDependencies() tools.ToolDependencies {
	return tools.ToolDependencies{
		Deploy: b.DeployHandler(),
		Logger: b.logger,
	}
}

// CreateMCPServer creates a new mcp-go server with tool capabilities
func (b *Bootstrapper) CreateMCPServer() *server.MCPServer {
	return server.NewMCPServer(
		b.config.ServiceName,
		b.config.ServiceVersion,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)
}

// RegisterComponents registers all tools with the MCP server
func (b *Bootstrapper) RegisterComponents(mcpServer *server.MCPServer) error {
	if mcpServer == nil {
		return errors.New(errors.CodeInternalError, "bootstrapper", "mcp server not initialized", nil)
	}
	if err := tools.RegisterTools(mcpServer, b.ToolDependencies()); err != nil {
		return errors.New(errors.CodeToolExecutionFailed, "bootstrapper", "failed to register tools", err)
	}
	return nil
}
