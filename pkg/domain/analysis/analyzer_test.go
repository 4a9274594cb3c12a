package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Category
	}{
		{"variable reference", "Variable does not exist: foo", CategoryReference},
		{"method reference", "Method does not exist or incorrect signature: void bar()", CategoryReference},
		{"expecting token", "Unexpected token '}'. Expecting ';'", CategorySyntax},
		{"syntax error", "Syntax error. Missing ';'", CategorySyntax},
		{"duplicate", "Duplicate variable: count", CategoryDuplicate},
		{"already exists", "A field with this name already exists", CategoryDuplicate},
		{"required field", "Required fields are missing: [Name]", CategoryMissingRequired},
		{"missing", "Missing value for property", CategoryMissingRequired},
		{"test failure", "System.AssertException: Assertion Failed: Expected: 1, Actual: 2", CategoryTestFailure},
		{"coverage", "Average test coverage across all Apex Classes and Triggers is 60%, at least 75% test coverage is required.", CategoryTestFailure},
		{"coverage only", "Code coverage is 10% for class Foo", CategoryCoverage},
		{"seventy five percent", "at least 75% is required", CategoryCoverage},
		{"permission", "Insufficient permission to update record", CategoryPermission},
		{"access", "No access to entity", CategoryPermission},
		{"limit", "Apex CPU time limit", CategoryLimitExceeded},
		{"exceeded", "Maximum stack depth has been exceeded", CategoryLimitExceeded},
		{"other", "Something unexpected happened", CategoryOther},
		{"empty", "", CategoryOther},
		{"case insensitive", "VARIABLE DOES NOT EXIST: X", CategoryReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestClassify_FirstRuleWins(t *testing.T) {
	// syntax is checked before test
	assert.Equal(t, CategorySyntax, Classify("syntax error in test class"))
	// reference is checked before duplicate and missing
	assert.Equal(t, CategoryReference, Classify("Variable does not exist: duplicate missing"))
	// missing is checked before permission
	assert.Equal(t, CategoryMissingRequired, Classify("missing access"))
}

func TestAnalyze_Empty(t *testing.T) {
	for name, result := range map[string]*deploy.Result{
		"nil result":    nil,
		"no details":    {Success: false},
		"empty details": {Details: &deploy.Details{}},
		"empty runtest": {Details: &deploy.Details{RunTestResult: &deploy.RunTestResult{}}},
	} {
		t.Run(name, func(t *testing.T) {
			a := Analyze(result)
			require.NotNil(t, a)
			assert.Equal(t, 0, a.TotalCount)
			assert.Empty(t, a.Records)
			assert.Empty(t, a.ByCategory)
			assert.Empty(t, a.ByComponent)
			assert.Equal(t, []string{FallbackSuggestion}, a.Suggestions)
		})
	}
}

func TestAnalyze_OrderAndGrouping(t *testing.T) {
	result := &deploy.Result{
		Details: &deploy.Details{
			ComponentFailures: deploy.List[deploy.ComponentFailure]{
				{FullName: "AccountService", LineNumber: 12, ColumnNumber: 5, Problem: "Unexpected token. Expecting ';'"},
				{FullName: "ContactService", LineNumber: 3, Problem: "Variable does not exist: acct"},
				{FullName: "AccountService", LineNumber: 40, ColumnNumber: 1, Problem: "Method does not exist or incorrect signature"},
			},
			RunTestResult: &deploy.RunTestResult{
				Failures: deploy.List[deploy.TestFailure]{
					{Name: "AccountServiceTest", MethodName: "testCreate", Message: "System.AssertException: Assertion Failed"},
				},
				CodeCoverageWarnings: deploy.List[deploy.CoverageWarning]{
					{Name: "ContactService", Message: "Code coverage is 40% for ContactService"},
					{Message: "Average org coverage is 60%, at least 75% is required"},
				},
			},
		},
	}

	a := Analyze(result)

	require.Equal(t, 6, a.TotalCount)
	require.Len(t, a.Records, 6)

	sources := []Source{}
	for _, r := range a.Records {
		sources = append(sources, r.Source)
	}
	assert.Equal(t, []Source{SourceComponent, SourceComponent, SourceComponent, SourceTest, SourceCoverage, SourceCoverage}, sources)

	assert.Equal(t, []Category{CategorySyntax, CategoryReference, CategoryTestFailure, CategoryCoverage}, a.Categories())
	assert.Len(t, a.ForCategory(CategoryReference), 2)
	assert.Len(t, a.ForCategory(CategoryCoverage), 2)
	assert.Nil(t, a.ForCategory(CategoryPermission))

	assert.Equal(t, []string{"AccountService", "ContactService", "AccountServiceTest", UnknownComponent}, a.Components())
	assert.Len(t, a.ForComponent("AccountService"), 2)
	assert.Len(t, a.ForComponent("ContactService"), 2)

	assert.Equal(t, []string{
		"Check syntax, missing semicolons, parentheses, or brackets",
		"Verify variable names, method signatures, and import statements",
		"Review test assertions and expected vs actual values",
		"Add more test methods or increase test coverage above 75%",
	}, a.Suggestions)
}

func TestAnalyze_SuggestionPresenceMatchesCategories(t *testing.T) {
	problems := []string{
		"Duplicate value found",
		"Required fields are missing",
		"insufficient access rights",
		"Too many SOQL queries: limit 101",
		"weird failure",
	}
	failures := deploy.List[deploy.ComponentFailure]{}
	for _, p := range problems {
		failures = append(failures, deploy.ComponentFailure{FullName: "X", Problem: p})
	}

	a := Analyze(&deploy.Result{Details: &deploy.Details{ComponentFailures: failures}})

	for _, s := range suggestions {
		present := len(a.ForCategory(s.category)) > 0
		assert.Equal(t, present, contains(a.Suggestions, s.text), "category %s", s.category)
	}
	assert.NotContains(t, a.Suggestions, FallbackSuggestion)
	assert.Len(t, a.ForCategory(CategoryLimitExceeded), 1)
	assert.Len(t, a.ForCategory(CategoryOther), 1)
}

func TestAnalyze_OnlyOtherErrorsGetFallback(t *testing.T) {
	a := Analyze(&deploy.Result{Details: &deploy.Details{
		ComponentFailures: deploy.List[deploy.ComponentFailure]{{Problem: "An unexpected error occurred"}},
	}})

	assert.Equal(t, 1, a.TotalCount)
	assert.Equal(t, []Category{CategoryOther}, a.Categories())
	assert.Equal(t, []string{FallbackSuggestion}, a.Suggestions)
	assert.Equal(t, []string{UnknownComponent}, a.Components())
}

func TestAnalyze_LimitOnlyGetsFallback(t *testing.T) {
	a := Analyze(&deploy.Result{Details: &deploy.Details{
		ComponentFailures: deploy.List[deploy.ComponentFailure]{{FullName: "Batch", Problem: "Apex heap size exceeded"}},
	}})

	assert.Equal(t, []Category{CategoryLimitExceeded}, a.Categories())
	assert.Equal(t, []string{FallbackSuggestion}, a.Suggestions)
}

func TestAnalyze_DecodedMetadataPayload(t *testing.T) {
	// single-element lists arrive as bare objects, numbers as strings
	payload := `{
		"id": "0Af000000000001",
		"status": "Failed",
		"success": false,
		"done": true,
		"details": {
			"componentFailures": {
				"fullName": "MyClass",
				"componentType": "ApexClass",
				"lineNumber": "10",
				"columnNumber": "3",
				"problem": "Variable does not exist: foo",
				"problemType": "Error"
			},
			"runTestResult": {
				"numTestsRun": "1",
				"failures": {"name": "MyClassTest", "methodName": "itWorks", "message": "Assertion Failed"}
			}
		}
	}`

	var result deploy.Result
	require.NoError(t, json.Unmarshal([]byte(payload), &result))

	a := Analyze(&result)
	require.Equal(t, 2, a.TotalCount)
	assert.Equal(t, Record{
		Component: "MyClass",
		Line:      10,
		Column:    3,
		Problem:   "Variable does not exist: foo",
		Category:  CategoryReference,
		Source:    SourceComponent,
	}, a.Records[0])
	assert.Equal(t, CategoryTestFailure, a.Records[1].Category)
	assert.Equal(t, "MyClassTest", a.Records[1].Component)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
