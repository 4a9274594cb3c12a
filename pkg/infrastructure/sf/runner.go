package sf

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// CommandRunner runs an external command in a working directory and returns its stdout and
// stderr separately.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (stdout string, stderr string, err error)
}

// DefaultCommandRunner is the os/exec implementation.
type DefaultCommandRunner struct {
	logger zerolog.Logger
}

var _ CommandRunner = &DefaultCommandRunner{}

// NewCommandRunner creates a runner that logs each invocation at debug level.
func NewCommandRunner(logger zerolog.Logger) *DefaultCommandRunner {
	return &DefaultCommandRunner{logger: logger.With().Str("component", "sf_runner").Logger()}
}

// Run executes name with args. dir becomes the child's working directory only.
func (r *DefaultCommandRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, string, error) {
	r.logger.Debug().Str("dir", dir).Str("cmd", name).Strs("args", args).Msg("Running command")

	// nolint:gosec // binary comes from configuration and args are built by this package
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	r.logger.Debug().
		Int("stdout_bytes", stdout.Len()).
		Str("stderr", strings.TrimSpace(stderr.String())).
		AnErr("error", err).
		Msg("Command finished")

	return stdout.String(), stderr.String(), err
}

// FakeResponse is a scripted command outcome.
type FakeResponse struct {
	Stdout string
	Stderr string
	Err    error
}

// FakeCall records one invocation of FakeCommandRunner.
type FakeCall struct {
	Dir  string
	Name string
	Args []string
}

// FakeCommandRunner answers commands from a script keyed by subcommand, such as
// "org display" or "project deploy start". Unscripted commands fail.
type FakeCommandRunner struct {
	mu        sync.Mutex
	Responses map[string]FakeResponse
	Calls     []FakeCall
}

var _ CommandRunner = &FakeCommandRunner{}

func (f *FakeCommandRunner) Run(_ context.Context, dir string, name string, args ...string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, FakeCall{Dir: dir, Name: name, Args: append([]string(nil), args...)})

	key := Subcommand(args)
	resp, ok := f.Responses[key]
	if !ok {
		return "", "unscripted command", fmt.Errorf("unscripted command: %s", key)
	}
	return resp.Stdout, resp.Stderr, resp.Err
}

// CallsTo returns the recorded invocations of a subcommand.
func (f *FakeCommandRunner) CallsTo(subcommand string) []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []FakeCall
	for _, c := range f.Calls {
		if Subcommand(c.Args) == subcommand {
			out = append(out, c)
		}
	}
	return out
}

// Subcommand returns the leading non-flag arguments joined by spaces.
func Subcommand(args []string) string {
	var parts []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			break
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
