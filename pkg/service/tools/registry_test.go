package tools

import (
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildToolSchema_DeployMetadata(t *testing.T) {
	config, err := GetToolConfig("deploy_metadata")
	require.NoError(t, err)

	schema := BuildToolSchema(*config)

	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"orgIdentifier", "projectDirectory"}, schema.Required)
	assert.Len(t, schema.Properties, 7)

	tests := []struct {
		param    string
		wantType string
	}{
		{"sourceDir", "array"},
		{"manifestPath", "string"},
		{"checkOnly", "boolean"},
		{"apexTestLevel", "string"},
		{"apexTests", "array"},
		{"orgIdentifier", "string"},
		{"projectDirectory", "string"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			prop, ok := schema.Properties[tt.param].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, tt.wantType, prop["type"])
			assert.NotEmpty(t, prop["description"])
			if tt.wantType == "array" {
				assert.Equal(t, map[string]interface{}{"type": "string"}, prop["items"])
			}
		})
	}

	level := schema.Properties["apexTestLevel"].(map[string]interface{})
	assert.Equal(t, []string{"NoTestRun", "RunLocalTests", "RunAllTestsInOrg"}, level["enum"])
}

func TestGetToolConfig_Unknown(t *testing.T) {
	_, err := GetToolConfig("retrieve_metadata")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool retrieve_metadata not found")
}

func TestParamSchema_DefaultDescription(t *testing.T) {
	schema := paramSchema("timeout", ParamSpec{Type: "integer"})
	assert.Equal(t, "integer", schema["type"])
	assert.Equal(t, "The timeout parameter", schema["description"])
	_, hasEnum := schema["enum"]
	assert.False(t, hasEnum)
}

func TestRegisterTools(t *testing.T) {
	mcpServer := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(true))

	err := RegisterTools(mcpServer, ToolDependencies{Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Deploy handler is required")

	err = RegisterTools(mcpServer, ToolDependencies{Deploy: &stubDeployHandler{}, Logger: zerolog.Nop()})
	require.NoError(t, err)
}
