package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
)

// RegisterTools registers all tools based on their configurations
func RegisterTools(mcpServer *server.MCPServer, deps ToolDependencies) error {
	for _, config := range toolConfigs {
		if err := RegisterTool(mcpServer, config, deps); err != nil {
			return errors.Wrapf(err, "failed to register tool %s", config.Name)
		}
	}
	return nil
}

// RegisterTool registers a single tool based on its configuration
func RegisterTool(mcpServer *server.MCPServer, config ToolConfig, deps ToolDependencies) error {
	if err := validateDependencies(config, deps); err != nil {
		return errors.Wrapf(err, "invalid dependencies for tool %s", config.Name)
	}

	schema := BuildToolSchema(config)
	tool := mcp.Tool{
		Name:        config.Name,
		Description: config.Description,
		InputSchema: schema,
	}

	if e := deps.Logger.Debug(); e.Enabled() {
		schemaJSON, _ := json.Marshal(schema)
		e.Str("tool", config.Name).RawJSON("schema", schemaJSON).Msg("Tool schema")
	}

	mcpServer.AddTool(tool, config.Handler(deps))

	deps.Logger.Info().
		Str("name", config.Name).
		Str("category", string(config.Category)).
		Msg("Registered tool")

	return nil
}

// validateDependencies ensures required dependencies are provided
func validateDependencies(config ToolConfig, deps ToolDependencies) error {
	if config.Handler == nil {
		return errors.New("tool has no handler")
	}
	if config.Category == CategoryDeployment && deps.Deploy == nil {
		return errors.New("Deploy handler is required but not provided")
	}
	return nil
}

// CallTool runs a registered tool outside of an MCP session.
func CallTool(ctx context.Context, name string, arguments map[string]interface{}, deps ToolDependencies) (*mcp.CallToolResult, error) {
	config, err := GetToolConfig(name)
	if err != nil {
		return nil, err
	}
	if err := validateDependencies(*config, deps); err != nil {
		return nil, errors.Wrapf(err, "invalid dependencies for tool %s", name)
	}

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	}
	return config.Handler(deps)(ctx, request)
}

// ResultText returns the concatenated text content of a tool result.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var text string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			text += tc.Text
		}
	}
	return text
}
