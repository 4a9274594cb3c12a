package sf

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

// reportGrace is extra time given to `sf project deploy report` beyond its own --wait before the
// process is killed.
const reportGrace = time.Minute

// Deployer starts deployments with `sf project deploy start --async` and waits on them with
// `sf project deploy report --wait`.
type Deployer struct {
	client *Client
	logger zerolog.Logger
}

var _ deploy.Deployer = &Deployer{}

func NewDeployer(client *Client) *Deployer {
	return &Deployer{
		client: client,
		logger: client.logger.With().Str("component", "sf_deployer").Logger(),
	}
}

type startResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (d *Deployer) StartDeploy(ctx context.Context, conn *deploy.Connection, set *deploy.ComponentSet, opts deploy.Options) (*deploy.Job, error) {
	args := []string{"project", "deploy", "start", "--async", "--target-org", conn.Target()}
	if opts.CheckOnly {
		args = append(args, "--dry-run")
	}
	if opts.TestLevel != "" {
		args = append(args, "--test-level", string(opts.TestLevel))
	}
	for _, test := range opts.RunTests {
		args = append(args, "--tests", test)
	}
	if set.ManifestPath != "" {
		args = append(args, "--manifest", set.ManifestPath)
	} else {
		for _, p := range set.SourcePaths() {
			args = append(args, "--source-dir", p)
		}
	}
	if v := d.apiVersion(conn, set); v != "" {
		args = append(args, "--api-version", v)
	}

	var resp startResponse
	if err := d.client.run(ctx, workDir(conn, set), &resp, args...); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errors.New(errors.CodeCommandFailed, domain, "sf project deploy start returned no job id", nil)
	}

	d.logger.Info().
		Str("job_id", resp.ID).
		Bool("check_only", opts.CheckOnly).
		Int("components", set.Size()).
		Msg("Deploy job queued")

	return &deploy.Job{ID: resp.ID, CheckOnly: opts.CheckOnly, Conn: conn}, nil
}

// PollDeploy waits up to timeout for the job to finish. A job still running afterwards yields a
// TIMEOUT_ERROR whose message contains "timed out".
func (d *Deployer) PollDeploy(ctx context.Context, job *deploy.Job, timeout time.Duration) (*deploy.Result, error) {
	minutes := int(math.Ceil(timeout.Minutes()))
	if minutes < 1 {
		minutes = 1
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout+reportGrace)
	defer cancel()

	dir := ""
	target := ""
	if job.Conn != nil {
		dir = job.Conn.ProjectDir
		target = job.Conn.Target()
	}
	args := []string{"project", "deploy", "report", "--job-id", job.ID, "--wait", strconv.Itoa(minutes)}
	if target != "" {
		args = append(args, "--target-org", target)
	}

	env, err := d.client.exec(pollCtx, dir, args...)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeTimeoutError {
			return nil, d.timedOut(job, timeout, "")
		}
		return nil, err
	}

	result, err := decodeResult(env)
	if err != nil {
		return nil, err
	}
	if result == nil {
		if err := envelopeError(env); errors.CodeOf(err) == errors.CodeTimeoutError {
			return nil, d.timedOut(job, timeout, "")
		} else if env.failed() {
			return nil, err
		}
		return nil, errors.New(errors.CodeCommandFailed, domain, "sf project deploy report returned no result", nil)
	}
	if !result.Done {
		return nil, d.timedOut(job, timeout, result.Status)
	}

	d.logger.Info().
		Str("job_id", job.ID).
		Str("status", result.Status).
		Bool("success", result.Success).
		Int("component_errors", int(result.NumberComponentErrors)).
		Int("test_errors", int(result.NumberTestErrors)).
		Msg("Deploy job finished")

	return result, nil
}

// decodeResult reads the deploy result from the envelope. Failed deployments exit non-zero but
// still carry their result, sometimes under data instead of result.
func decodeResult(env *envelope) (*deploy.Result, error) {
	for _, raw := range []json.RawMessage{env.Result, env.Data} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var result deploy.Result
		if err := json.Unmarshal(raw, &result); err != nil {
			continue
		}
		if result.ID != "" || result.Status != "" {
			return &result, nil
		}
	}
	if env.hasResult() && !env.failed() {
		return nil, errors.New(errors.CodeCommandFailed, domain, "failed to decode deploy result", nil)
	}
	return nil, nil
}

func (d *Deployer) timedOut(job *deploy.Job, timeout time.Duration, status string) error {
	msg := fmt.Sprintf("deploy %s timed out after %s", job.ID, timeout)
	if status != "" {
		msg += fmt.Sprintf(" with status %s", status)
	}
	d.logger.Warn().Str("job_id", job.ID).Dur("timeout", timeout).Msg("Deploy job still running")
	return errors.New(errors.CodeTimeoutError, domain, msg, nil)
}

// apiVersion picks the project's sourceApiVersion unless the org doesn't support it yet.
func (d *Deployer) apiVersion(conn *deploy.Connection, set *deploy.ComponentSet) string {
	if set.APIVersion == "" {
		return ""
	}
	if conn.APIVersion == "" {
		return set.APIVersion
	}
	want, err := semver.NewVersion(set.APIVersion)
	if err != nil {
		return set.APIVersion
	}
	supported, err := semver.NewVersion(conn.APIVersion)
	if err != nil {
		return set.APIVersion
	}
	if want.GreaterThan(supported) {
		d.logger.Warn().
			Str("source_api_version", set.APIVersion).
			Str("org_api_version", conn.APIVersion).
			Msg("Org does not support the project's sourceApiVersion, using the org's")
		return conn.APIVersion
	}
	return set.APIVersion
}

func workDir(conn *deploy.Connection, set *deploy.ComponentSet) string {
	if set.ProjectDir != "" {
		return set.ProjectDir
	}
	return conn.ProjectDir
}
