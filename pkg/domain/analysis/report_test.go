package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
)

func TestRecord_Location(t *testing.T) {
	tests := []struct {
		record Record
		want   string
	}{
		{Record{Component: "MyClass", Line: 10, Column: 3}, "MyClass:10:3"},
		{Record{Component: "MyClass", Line: 10}, "MyClass:10"},
		{Record{Component: "MyClass", Column: 3}, "MyClass"},
		{Record{Component: "MyClass"}, "MyClass"},
		{Record{Component: UnknownComponent}, "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.record.Location())
	}
}

func TestFormatReport(t *testing.T) {
	tests := []struct {
		name          string
		mode          string
		result        *deploy.Result
		expectedParts []string
		notExpected   []string
	}{
		{
			name: "single reference error",
			mode: "Deploy",
			result: &deploy.Result{Details: &deploy.Details{
				ComponentFailures: deploy.List[deploy.ComponentFailure]{
					{FullName: "MyClass", LineNumber: 10, ColumnNumber: 3, Problem: "Variable does not exist: foo"},
				},
			}},
			expectedParts: []string{
				"Deploy failed with 1 error(s):\n\n",
				"1. MyClass:10:3\n   Problem: Variable does not exist: foo\n   Type: REFERENCE_ERROR",
				"REFERENCE_ERROR: 1 error(s)",
				"Verify variable names, method signatures, and import statements",
				"\n\nRaw details: {\"x\":1}",
			},
			notExpected: []string{
				"Check syntax, missing semicolons, parentheses, or brackets",
				FallbackSuggestion,
			},
		},
		{
			name: "validation with missing problem text",
			mode: "Validation",
			result: &deploy.Result{Details: &deploy.Details{
				ComponentFailures: deploy.List[deploy.ComponentFailure]{{}},
			}},
			expectedParts: []string{
				"Validation failed with 1 error(s):",
				"1. Unknown\n   Problem: Unknown error\n   Type: OTHER_ERROR",
				"OTHER_ERROR: 1 error(s)",
				FallbackSuggestion,
			},
		},
		{
			name:   "no failure items",
			mode:   "Deploy",
			result: &deploy.Result{},
			expectedParts: []string{
				"Deploy failed with 0 error(s):",
				NoFailureDetails,
				"Error Summary:",
				FallbackSuggestion,
			},
			notExpected: []string{"error(s)\n  ", "Job error:"},
		},
		{
			name: "job level failure only",
			mode: "Deploy",
			result: &deploy.Result{
				Status:       "Failed",
				ErrorMessage: "INVALID_CROSS_REFERENCE_KEY: bad org",
				Details:      &deploy.Details{},
			},
			expectedParts: []string{
				"Deploy failed with 0 error(s):\n\n",
				NoFailureDetails + "\n   Job error: INVALID_CROSS_REFERENCE_KEY: bad org\n\nError Summary:",
				FallbackSuggestion,
			},
		},
		{
			name: "job level failure with status code",
			mode: "Validation",
			result: &deploy.Result{
				ErrorMessage:    "The org is locked for deployments",
				ErrorStatusCode: "UNKNOWN_EXCEPTION",
			},
			expectedParts: []string{
				"Validation failed with 0 error(s):",
				"Job error: UNKNOWN_EXCEPTION: The org is locked for deployments",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := FormatReport(tt.mode, Analyze(tt.result), `{"x":1}`)
			for _, part := range tt.expectedParts {
				assert.Contains(t, report, part)
			}
			for _, part := range tt.notExpected {
				assert.NotContains(t, report, part)
			}
		})
	}
}

func TestFormatReport_SectionOrder(t *testing.T) {
	a := Analyze(&deploy.Result{Details: &deploy.Details{
		ComponentFailures: deploy.List[deploy.ComponentFailure]{
			{FullName: "A", Problem: "Duplicate value"},
			{FullName: "B", Problem: "Syntax error"},
		},
	}})

	report := FormatReport("Deploy", a, "{}")

	list := strings.Index(report, "1. A")
	second := strings.Index(report, "2. B")
	summary := strings.Index(report, "Error Summary:")
	hints := strings.Index(report, "Suggestions:")
	raw := strings.Index(report, "Raw details: {}")

	assert.True(t, list < second && second < summary && summary < hints && hints < raw, report)

	// summary follows first occurrence, suggestions follow the fixed order
	assert.Less(t, strings.Index(report, "DUPLICATE_ERROR: 1"), strings.Index(report, "SYNTAX_ERROR: 1"))
	assert.Less(t, strings.Index(report, "Check syntax"), strings.Index(report, "Remove duplicate"))
}

func TestAnalyze_JobErrorOnlyWithoutItems(t *testing.T) {
	a := Analyze(&deploy.Result{
		ErrorMessage: "Deployment failed",
		Details: &deploy.Details{
			ComponentFailures: deploy.List[deploy.ComponentFailure]{{FullName: "A", Problem: "Syntax error"}},
		},
	})
	assert.Empty(t, a.JobError)
	assert.Equal(t, 1, a.TotalCount)

	a = Analyze(&deploy.Result{ErrorMessage: "Deployment failed"})
	assert.Equal(t, 0, a.TotalCount)
	assert.Equal(t, "Deployment failed", a.JobError)
	assert.Empty(t, a.Records)
}
