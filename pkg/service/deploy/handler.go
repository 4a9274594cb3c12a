// Package deploy implements the deploy_metadata request flow: parameter checks, org and
// project resolution, component selection, the deploy itself and the rendering of its outcome.
package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forcekit/deploy-assist/pkg/domain/analysis"
	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

// DefaultPollTimeout is how long a started job is waited on before the caller is told to resume it.
const DefaultPollTimeout = 10 * time.Minute

// Outcome labels a finished invocation for logs and metrics.
type Outcome string

const (
	OutcomeInvalid     Outcome = "invalid"
	OutcomeDenied      Outcome = "denied"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeNoChanges   Outcome = "no_changes"
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeFailed      Outcome = "failed"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeError       Outcome = "error"
)

// Response is what the tool layer returns to the caller.
type Response struct {
	Text    string
	IsError bool
	Outcome Outcome
	JobID   string
}

// Recorder receives one observation per invocation.
type Recorder interface {
	RecordRequest(mode string, outcome string, duration time.Duration)
	RecordAnalysis(a *analysis.Analysis)
}

// Collaborators are the ports the handler drives.
type Collaborators struct {
	Access   deploy.AccessChecker
	Orgs     deploy.OrgResolver
	Projects deploy.ProjectResolver
	Builder  deploy.ComponentSetBuilder
	Tracker  deploy.SourceTracker
	Deployer deploy.Deployer
}

// Handler runs deploy and validate requests. It keeps no per-request state and is safe for
// concurrent use.
type Handler struct {
	deps        Collaborators
	recorder    Recorder
	pollTimeout time.Duration
	logger      zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// WithPollTimeout overrides DefaultPollTimeout.
func WithPollTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pollTimeout = d
		}
	}
}

// NewHandler creates a handler over the given collaborators.
func NewHandler(deps Collaborators, logger zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		deps:        deps,
		pollTimeout: DefaultPollTimeout,
		logger:      logger.With().Str("component", "deploy_handler").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle runs one request to completion. It never returns an error: every failure is rendered
// into the response text with IsError set.
func (h *Handler) Handle(ctx context.Context, req deploy.Request) Response {
	start := time.Now()
	log := h.logger.With().
		Str("request_id", uuid.NewString()).
		Str("mode", req.Mode()).
		Str("org", req.OrgIdentifier).
		Logger()

	log.Info().
		Strs("source_dir", req.SourceDir).
		Str("manifest", req.ManifestPath).
		Str("test_level", string(req.ApexTestLevel)).
		Int("tests", len(req.ApexTests)).
		Msg("Handling deploy request")

	resp := h.handle(log.WithContext(ctx), req)

	event := log.Info()
	if resp.IsError {
		event = log.Warn()
	}
	event.Str("outcome", string(resp.Outcome)).
		Str("job_id", resp.JobID).
		Dur("duration", time.Since(start)).
		Msg("Deploy request finished")

	if h.recorder != nil {
		h.recorder.RecordRequest(req.Mode(), string(resp.Outcome), time.Since(start))
	}
	return resp
}

func (h *Handler) handle(ctx context.Context, req deploy.Request) Response {
	log := zerolog.Ctx(ctx)

	if err := req.Validate(); err != nil {
		return errorResponse(OutcomeInvalid, messageOf(err))
	}

	if h.deps.Access != nil {
		if err := h.deps.Access.CheckOrgAccess(ctx, req.OrgIdentifier, req.ProjectDirectory); err != nil {
			if errors.HasCode(err, errors.CodeOrgNotAllowed) {
				return errorResponse(OutcomeDenied, messageOf(err))
			}
			return h.failure(req, err)
		}
	}

	conn, err := h.deps.Orgs.ResolveOrg(ctx, req.OrgIdentifier, req.ProjectDirectory)
	if err != nil {
		return h.failure(req, err)
	}
	log.Debug().Str("username", conn.Username).Str("instance_url", conn.InstanceURL).Msg("Org resolved")

	project, err := h.deps.Projects.ResolveProject(ctx, req.ProjectDirectory)
	if err != nil {
		return h.failure(req, err)
	}

	set, resp, ok := h.selectComponents(ctx, req, conn, project)
	if !ok {
		return resp
	}
	if set.Size() == 0 {
		return Response{
			Text:    fmt.Sprintf("No local changes to %s were found.", req.Verb()),
			Outcome: OutcomeNoChanges,
		}
	}
	log.Debug().Int("components", set.Size()).Msg("Component set ready")

	job, err := h.deps.Deployer.StartDeploy(ctx, conn, set, req.Options())
	if err != nil {
		return h.transportFailure(req, "", err)
	}
	if job == nil {
		return h.failure(req, errors.New(errors.CodeInternalError, "deploy", "the deploy job was not started", nil))
	}
	jobID := job.ID
	log.Info().Str("job_id", jobID).Msg("Deploy job started")

	result, err := h.deps.Deployer.PollDeploy(ctx, job, h.pollTimeout)
	if err != nil {
		return h.transportFailure(req, jobID, err)
	}
	if result == nil {
		resp := h.failure(req, errors.New(errors.CodeInternalError, "deploy",
			fmt.Sprintf("no result was reported for job %s", jobID), nil))
		resp.JobID = jobID
		return resp
	}

	if result.Success {
		return Response{Text: successText(req), Outcome: OutcomeSucceeded, JobID: jobID}
	}

	a := analysis.Analyze(result)
	if h.recorder != nil {
		h.recorder.RecordAnalysis(a)
	}
	return Response{
		Text:    analysis.FormatReport(req.Mode(), a, result.DetailsJSON()),
		IsError: true,
		Outcome: OutcomeFailed,
		JobID:   jobID,
	}
}

// selectComponents builds the explicit set when targets were given, otherwise asks source
// tracking for the local changes.
func (h *Handler) selectComponents(ctx context.Context, req deploy.Request, conn *deploy.Connection, project *deploy.Project) (*deploy.ComponentSet, Response, bool) {
	if req.HasExplicitTargets() {
		set, err := h.deps.Builder.Build(ctx, deploy.BuildSpec{
			SourcePaths:  req.SourceDir,
			ManifestPath: req.ManifestPath,
			Project:      project,
		})
		if err != nil {
			return nil, h.failure(req, err), false
		}
		return set, Response{}, true
	}

	tracks, err := h.deps.Orgs.TracksSource(ctx, conn)
	if err != nil {
		return nil, h.failure(req, err), false
	}
	if !tracks {
		err := errors.New(errors.CodeTrackingUnsupported, "deploy", fmt.Sprintf(
			"The org %s doesn't have source tracking enabled, so local changes can't be computed. "+
				"Specify `sourceDir` or `manifestPath` to choose the metadata to %s.",
			req.OrgIdentifier, req.Verb()), nil)
		return nil, errorResponse(OutcomeUnsupported, messageOf(err)), false
	}

	set, err := h.deps.Tracker.LocalChanges(ctx, conn, project)
	if err != nil {
		return nil, h.failure(req, err), false
	}
	return set, Response{}, true
}

func (h *Handler) transportFailure(req deploy.Request, jobID string, err error) Response {
	if isTimeout(err) {
		text := fmt.Sprintf("The %s operation timed out after %s but may still be running in the org. ",
			req.Verb(), h.pollTimeout)
		if jobID != "" {
			text += fmt.Sprintf("Use the resume capability with job ID %q to check on it, for example: "+
				"sf project deploy resume --job-id %s", jobID, jobID)
		} else {
			text += "No job ID was returned, so check the org's Deployment Status page for the job."
		}
		return Response{
			Text:    text,
			IsError: true,
			Outcome: OutcomeTimeout,
			JobID:   jobID,
		}
	}
	resp := h.failure(req, err)
	resp.JobID = jobID
	return resp
}

func (h *Handler) failure(req deploy.Request, err error) Response {
	return errorResponse(OutcomeError, fmt.Sprintf("Failed to %s metadata: %s", req.Verb(), messageOf(err)))
}

func errorResponse(outcome Outcome, text string) Response {
	return Response{Text: text, IsError: true, Outcome: outcome}
}

func successText(req deploy.Request) string {
	if req.CheckOnly {
		return "Validation result: Validation successful! The components compiled and the requested tests passed; nothing was saved to the org."
	}
	return "Deploy result: Deployment completed successfully!"
}

func isTimeout(err error) bool {
	return errors.HasCode(err, errors.CodeTimeoutError) || strings.Contains(strings.ToLower(err.Error()), "timed out")
}

// messageOf returns the caller-facing text of err without the structured code prefix.
func messageOf(err error) string {
	var e *errors.Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
