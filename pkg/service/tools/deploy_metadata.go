package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
)

func createDeployMetadataHandler(deps ToolDependencies) server.ToolHandlerFunc {
	logger := deps.Logger.With().Str("tool", "deploy_metadata").Logger()

	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		request, err := parseDeployRequest(req.GetArguments())
		if err != nil {
			logger.Warn().Err(err).Msg("Rejected malformed arguments")
			return createErrorResult(errors.Wrap(err, "invalid deploy_metadata arguments")), nil
		}

		resp := deps.Deploy.Handle(ctx, request)
		return createTextResult(resp.Text, resp.IsError), nil
	}
}

// parseDeployRequest checks argument types only. Presence and combination rules are enforced by
// the request itself so they are reported with the same wording on every entry point.
func parseDeployRequest(args map[string]interface{}) (deploy.Request, error) {
	var req deploy.Request
	var err error

	if req.SourceDir, err = ExtractStringArrayParam(args, "sourceDir"); err != nil {
		return req, err
	}
	if req.ManifestPath, err = ExtractOptionalStringParam(args, "manifestPath"); err != nil {
		return req, err
	}
	if req.CheckOnly, err = ExtractOptionalBoolParam(args, "checkOnly"); err != nil {
		return req, err
	}
	level, err := ExtractOptionalStringParam(args, "apexTestLevel")
	if err != nil {
		return req, err
	}
	req.ApexTestLevel = deploy.TestLevel(level)
	if req.ApexTests, err = ExtractStringArrayParam(args, "apexTests"); err != nil {
		return req, err
	}
	if req.OrgIdentifier, err = ExtractOptionalStringParam(args, "orgIdentifier"); err != nil {
		return req, err
	}
	if req.ProjectDirectory, err = ExtractOptionalStringParam(args, "projectDirectory"); err != nil {
		return req, err
	}
	return req, nil
}
