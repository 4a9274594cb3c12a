package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/forcekit/deploy-assist/pkg/infrastructure/sf"
	"github.com/forcekit/deploy-assist/pkg/logger"
	"github.com/forcekit/deploy-assist/pkg/service/bootstrap"
	"github.com/forcekit/deploy-assist/pkg/service/config"
	"github.com/forcekit/deploy-assist/pkg/service/lifecycle"
	"github.com/forcekit/deploy-assist/pkg/service/tools"
)

const deployToolName = "deploy_metadata"

const shutdownTimeout = 10 * time.Second

// errToolFailed marks a one-shot run whose tool result was an error. The result text has
// already been written, so main only sets the exit code.
var errToolFailed = errors.New("tool returned an error result")

// app carries the process streams and the overridable collaborators of the CLI.
type app struct {
	out    io.Writer
	errOut io.Writer

	runner  sf.CommandRunner
	homeDir string

	// global flags
	configFile  string
	envFile     string
	logLevel    string
	logFormat   string
	sfBinary    string
	allowedOrgs []string
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut}
}

func (a *app) rootCmd() *cobra.Command {
	serve := a.serveCmd()

	root := &cobra.Command{
		Use:           "deploy-assist-mcp",
		Short:         "MCP server that deploys and validates Salesforce metadata",
		Long:          "Serves the deploy_metadata tool over MCP. Without a subcommand it runs the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Path to a YAML configuration file")
	pf.StringVar(&a.envFile, "env-file", ".env", "Path to a .env file; a missing file is ignored")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format (console, json)")
	pf.StringVar(&a.sfBinary, "sf-binary", "", "Salesforce CLI executable")
	pf.StringSliceVar(&a.allowedOrgs, "allowed-orgs", nil,
		"Orgs the server may deploy to: usernames, aliases, ALLOW_ALL_ORGS, DEFAULT_TARGET_ORG or DEFAULT_TARGET_DEV_HUB")

	// serve flags are accepted on the root command as well since it serves by default
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, a.deployCmd(), a.versionCmd())
	return root
}

type serveFlags struct {
	transport     string
	httpHost      string
	httpPort      int
	telemetry     bool
	telemetryPort int
}

func (a *app) serveCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := a.setup(cmd)
			if err != nil {
				return err
			}
			applyServeFlags(cmd, cfg, f)
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}
			return a.serve(cmd.Context(), cfg, log)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.transport, "transport", "", "Transport type (stdio, http)")
	fs.StringVar(&f.httpHost, "http-host", "", "HTTP listen host")
	fs.IntVar(&f.httpPort, "http-port", 0, "HTTP listen port")
	fs.BoolVar(&f.telemetry, "telemetry", false, "Serve Prometheus metrics")
	fs.IntVar(&f.telemetryPort, "telemetry-port", 0, "Port for the Prometheus metrics endpoint")
	return cmd
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config, f serveFlags) {
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.TransportType = f.transport
	}
	if flags.Changed("http-host") {
		cfg.HTTPHost = f.httpHost
	}
	if flags.Changed("http-port") {
		cfg.HTTPPort = f.httpPort
	}
	if flags.Changed("telemetry") {
		cfg.TelemetryEnabled = f.telemetry
	}
	if flags.Changed("telemetry-port") {
		cfg.TelemetryPort = f.telemetryPort
	}
}

func (a *app) serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if len(cfg.AllowedOrgs) == 0 {
		log.Warn().Msg("No allowed orgs configured; every deploy_metadata call will be rejected")
	}

	b := a.bootstrapper(cfg, log)
	manager := lifecycle.NewManager(log, cfg, b)

	err := manager.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := manager.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

type deployFlags struct {
	argsJSON   string
	org        string
	projectDir string
	sourceDirs []string
	manifest   string
	checkOnly  bool
	testLevel  string
	tests      []string
}

func (a *app) deployCmd() *cobra.Command {
	var f deployFlags
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Run deploy_metadata once and print its result",
		Long: "Runs the deploy_metadata tool without an MCP client. Arguments come from --args, a JSON " +
			"object using the tool's parameter names, and from the individual flags, which take precedence.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := a.setup(cmd)
			if err != nil {
				return err
			}
			args, err := deployArguments(cmd, f)
			if err != nil {
				return err
			}

			result, err := tools.CallTool(cmd.Context(), deployToolName, args, a.bootstrapper(cfg, log).ToolDependencies())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, tools.ResultText(result))
			if result.IsError {
				return errToolFailed
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.argsJSON, "args", "", "Tool arguments as a JSON object")
	fs.StringVarP(&f.org, "org", "o", "", "Username or alias of the target org (orgIdentifier)")
	fs.StringVarP(&f.projectDir, "project-dir", "d", "", "Project directory (projectDirectory); defaults to the working directory")
	fs.StringArrayVar(&f.sourceDirs, "source-dir", nil, "Source path to deploy (sourceDir); repeatable")
	fs.StringVar(&f.manifest, "manifest", "", "package.xml manifest (manifestPath)")
	fs.BoolVar(&f.checkOnly, "check-only", false, "Validate without saving (checkOnly)")
	fs.StringVar(&f.testLevel, "test-level", "", "Apex test level (apexTestLevel)")
	fs.StringArrayVar(&f.tests, "tests", nil, "Apex test to run (apexTests); repeatable")
	return cmd
}

// deployArguments merges --args with the individual flags into tool arguments.
func deployArguments(cmd *cobra.Command, f deployFlags) (map[string]interface{}, error) {
	args := make(map[string]interface{})
	if f.argsJSON != "" {
		if err := json.Unmarshal([]byte(f.argsJSON), &args); err != nil {
			return nil, errors.Wrap(err, "--args must be a JSON object")
		}
	}

	flags := cmd.Flags()
	if flags.Changed("org") {
		args["orgIdentifier"] = f.org
	}
	if flags.Changed("project-dir") {
		args["projectDirectory"] = f.projectDir
	}
	if flags.Changed("source-dir") {
		args["sourceDir"] = toInterfaces(f.sourceDirs)
	}
	if flags.Changed("manifest") {
		args["manifestPath"] = f.manifest
	}
	if flags.Changed("check-only") {
		args["checkOnly"] = f.checkOnly
	}
	if flags.Changed("test-level") {
		args["apexTestLevel"] = f.testLevel
	}
	if flags.Changed("tests") {
		args["apexTests"] = toInterfaces(f.tests)
	}

	if _, ok := args["projectDirectory"]; !ok {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to determine the working directory")
		}
		args["projectDirectory"] = wd
	}
	return args, nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "deploy-assist-mcp %s\n", getVersion())
		},
	}
}

// setup loads the configuration, applies the global flags and builds the logger.
func (a *app) setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(a.configFile, a.envFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Changed("sf-binary") {
		cfg.SFBinary = a.sfBinary
	}
	if flags.Changed("allowed-orgs") {
		cfg.AllowedOrgs = a.allowedOrgs
	}
	if cfg.ServiceVersion == "dev" && Version != "dev" {
		cfg.ServiceVersion = Version
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), errors.Wrap(err, "invalid configuration")
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: a.errOut})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

func (a *app) bootstrapper(cfg *config.Config, log zerolog.Logger) *bootstrap.Bootstrapper {
	var opts []bootstrap.Option
	if a.runner != nil {
		opts = append(opts, bootstrap.WithCommandRunner(a.runner))
	}
	if a.homeDir != "" {
		opts = append(opts, bootstrap.WithHomeDir(a.homeDir))
	}
	return bootstrap.NewBootstrapper(log, cfg, opts...)
}
