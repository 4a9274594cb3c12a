// Package sf implements the deploy collaborators on top of the Salesforce CLI (`sf`), driving it
// with --json and decoding its result envelope.
package sf

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

const domain = "sf"

// envelope is the JSON document every sf command prints with --json.
type envelope struct {
	Status   int             `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
	Name     string          `json:"name,omitempty"`
	Message  string          `json:"message,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

func (e *envelope) failed() bool {
	return e.Status != 0
}

// hasResult reports whether the envelope carries a non-empty result object.
func (e *envelope) hasResult() bool {
	r := strings.TrimSpace(string(e.Result))
	return r != "" && r != "null" && r != "{}"
}

// Client runs sf commands through a CommandRunner.
type Client struct {
	runner CommandRunner
	binary string
	logger zerolog.Logger
}

// NewClient creates a client invoking binary, normally "sf".
func NewClient(runner CommandRunner, binary string, logger zerolog.Logger) *Client {
	if binary == "" {
		binary = "sf"
	}
	return &Client{
		runner: runner,
		binary: binary,
		logger: logger.With().Str("component", "sf_client").Logger(),
	}
}

// exec runs one command with --json appended and decodes the envelope. A non-zero envelope
// status is not an error here; callers decide how to treat it.
func (c *Client) exec(ctx context.Context, dir string, args ...string) (*envelope, error) {
	args = append(args, "--json")
	stdout, stderr, runErr := c.runner.Run(ctx, dir, c.binary, args...)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, errors.New(errors.CodeTimeoutError, domain,
				fmt.Sprintf("sf %s timed out", Subcommand(args)), ctxErr)
		}
		return nil, errors.New(errors.CodeInternalError, domain,
			fmt.Sprintf("sf %s was cancelled", Subcommand(args)), ctxErr)
	}

	var env envelope
	if err := json.Unmarshal([]byte(extractJSON(stdout)), &env); err != nil {
		if runErr != nil {
			return nil, errors.New(errors.CodeCommandFailed, domain,
				fmt.Sprintf("sf %s failed: %s", Subcommand(args), firstLine(stderr, runErr.Error())), runErr)
		}
		return nil, errors.New(errors.CodeCommandFailed, domain,
			fmt.Sprintf("failed to parse sf %s output", Subcommand(args)), err)
	}

	for _, w := range env.Warnings {
		c.logger.Debug().Str("cmd", Subcommand(args)).Str("warning", w).Msg("sf warning")
	}
	return &env, nil
}

// run executes a command and decodes its result into out. A failed envelope becomes an error.
func (c *Client) run(ctx context.Context, dir string, out interface{}, args ...string) error {
	env, err := c.exec(ctx, dir, args...)
	if err != nil {
		return err
	}
	if env.failed() {
		return envelopeError(env)
	}
	if out == nil || !env.hasResult() {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return errors.New(errors.CodeCommandFailed, domain,
			fmt.Sprintf("failed to decode sf %s result", Subcommand(args)), err)
	}
	return nil
}

var notFoundNames = map[string]bool{
	"NoAuthInfoFound":       true,
	"NamedOrgNotFound":      true,
	"NamedOrgNotFoundError": true,
	"NoOrgFound":            true,
	"AuthInfoCreationError": true,
}

// envelopeError maps a failed envelope onto a structured error.
func envelopeError(env *envelope) error {
	message := env.Message
	if message == "" {
		message = fmt.Sprintf("sf exited with status %d", env.Status)
	}

	code := errors.CodeCommandFailed
	switch {
	case notFoundNames[env.Name]:
		code = errors.CodeOrgNotFound
	case strings.Contains(env.Name, "Timeout"), strings.Contains(strings.ToLower(message), "timed out"):
		code = errors.CodeTimeoutError
	}
	return errors.New(code, domain, message, nil)
}

// extractJSON drops anything printed before the JSON document, such as update notices.
func extractJSON(stdout string) string {
	if i := strings.Index(stdout, "{"); i > 0 {
		return stdout[i:]
	}
	return stdout
}

func firstLine(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
