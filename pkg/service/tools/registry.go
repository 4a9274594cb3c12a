package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
	deploysvc "github.com/forcekit/deploy-assist/pkg/service/deploy"
)

// ToolCategory defines the type of tool
type ToolCategory string

const (
	CategoryDeployment ToolCategory = "deployment"
)

// ParamSpec describes one input parameter of a tool.
type ParamSpec struct {
	Type        string // string, boolean, array, integer
	Description string
	Enum        []string
}

// ToolConfig defines the configuration for a tool
type ToolConfig struct {
	Name        string
	Description string
	Category    ToolCategory

	// Input schema parameters
	RequiredParams map[string]ParamSpec
	OptionalParams map[string]ParamSpec

	Handler func(deps ToolDependencies) server.ToolHandlerFunc
}

// DeployHandler runs one deploy or validate request.
type DeployHandler interface {
	Handle(ctx context.Context, req deploy.Request) deploysvc.Response
}

// ToolDependencies holds all possible dependencies a tool might need
type ToolDependencies struct {
	Deploy DeployHandler
	Logger zerolog.Logger
}

// createTextResult wraps a plain text payload in a tool result.
func createTextResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
		IsError: isError,
	}
}

// createErrorResult creates a standardized error result
func createErrorResult(err error) *mcp.CallToolResult {
	return createTextResult(err.Error(), true)
}

const deployMetadataDescription = "Deploy or validate Salesforce metadata from a local Salesforce DX project to an org. " +
	"Without `sourceDir` or `manifestPath` the locally changed source is computed with source tracking. " +
	"Set `checkOnly` to validate without saving. When a deployment fails the response lists every " +
	"component, test and coverage failure with its category and remediation hints."

// All tool configurations in a single table
var toolConfigs = []ToolConfig{
	{
		Name:        "deploy_metadata",
		Description: deployMetadataDescription,
		Category:    CategoryDeployment,
		RequiredParams: map[string]ParamSpec{
			"orgIdentifier": {
				Type:        "string",
				Description: "Username or alias of the target org. Resolve it before calling this tool.",
			},
			"projectDirectory": {
				Type:        "string",
				Description: "Absolute path of the Salesforce DX project root (the directory holding sfdx-project.json).",
			},
		},
		OptionalParams: map[string]ParamSpec{
			"sourceDir": {
				Type:        "array",
				Description: "Files or directories to deploy, relative to the project directory. Can't be combined with `manifestPath`.",
			},
			"manifestPath": {
				Type:        "string",
				Description: "Path of a package.xml manifest naming the components to deploy. Can't be combined with `sourceDir`.",
			},
			"checkOnly": {
				Type:        "boolean",
				Description: "Validate the deployment without saving it to the org. Defaults to false.",
			},
			"apexTestLevel": {
				Type:        "string",
				Description: "Apex test level to run. Can't be combined with `apexTests`.",
				Enum:        testLevelNames(),
			},
			"apexTests": {
				Type:        "array",
				Description: "Apex test classes to run. Implies the RunSpecifiedTests level.",
			},
		},
		Handler: createDeployMetadataHandler,
	},
}

func testLevelNames() []string {
	names := make([]string, 0, len(deploy.RequestableTestLevels))
	for _, l := range deploy.RequestableTestLevels {
		names = append(names, string(l))
	}
	return names
}

// GetToolConfigs returns all tool configurations
func GetToolConfigs() []ToolConfig {
	return toolConfigs
}

// GetToolConfig returns a specific tool configuration by name
func GetToolConfig(name string) (*ToolConfig, error) {
	for _, config := range toolConfigs {
		if config.Name == name {
			return &config, nil
		}
	}
	return nil, errors.Errorf("tool %s not found", name)
}

// BuildToolSchema creates the MCP input schema for a tool
func BuildToolSchema(config ToolConfig) mcp.ToolInputSchema {
	properties := make(map[string]interface{})
	required := make([]string, 0, len(config.RequiredParams))

	for param, spec := range config.RequiredParams {
		properties[param] = paramSchema(param, spec)
		required = append(required, param)
	}
	sort.Strings(required)

	for param, spec := range config.OptionalParams {
		properties[param] = paramSchema(param, spec)
	}

	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func paramSchema(param string, spec ParamSpec) map[string]interface{} {
	description := spec.Description
	if description == "" {
		description = fmt.Sprintf("The %s parameter", param)
	}
	schema := map[string]interface{}{
		"description": description,
	}

	switch spec.Type {
	case "array":
		// Arrays must have an items schema for JSON Schema compliance
		schema["type"] = "array"
		schema["items"] = map[string]interface{}{
			"type": "string",
		}
	case "boolean", "integer", "number", "object":
		schema["type"] = spec.Type
	default:
		schema["type"] = "string"
	}

	if len(spec.Enum) > 0 {
		schema["enum"] = spec.Enum
	}
	return schema
}
