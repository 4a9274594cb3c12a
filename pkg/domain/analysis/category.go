package analysis

import "strings"

// Category is the problem class assigned to a failure.
type Category string

const (
	CategoryReference       Category = "REFERENCE_ERROR"
	CategorySyntax          Category = "SYNTAX_ERROR"
	CategoryDuplicate       Category = "DUPLICATE_ERROR"
	CategoryMissingRequired Category = "MISSING_REQUIRED"
	CategoryTestFailure     Category = "TEST_FAILURE"
	CategoryCoverage        Category = "COVERAGE_WARNING"
	CategoryPermission      Category = "PERMISSION_ERROR"
	CategoryLimitExceeded   Category = "LIMIT_EXCEEDED"
	CategoryOther           Category = "OTHER_ERROR"
)

type rule struct {
	needles  []string
	category Category
}

// rules are evaluated top to bottom; the first match wins.
var rules = []rule{
	{[]string{"variable does not exist", "method does not exist"}, CategoryReference},
	{[]string{"expecting", "syntax error"}, CategorySyntax},
	{[]string{"duplicate", "already exists"}, CategoryDuplicate},
	{[]string{"required field", "missing"}, CategoryMissingRequired},
	{[]string{"test", "assertion"}, CategoryTestFailure},
	{[]string{"coverage", "75%"}, CategoryCoverage},
	{[]string{"permission", "access"}, CategoryPermission},
	{[]string{"limit", "exceeded"}, CategoryLimitExceeded},
}

// Classify returns the category of a free-text problem description.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, needle := range r.needles {
			if strings.Contains(lower, needle) {
				return r.category
			}
		}
	}
	return CategoryOther
}

type suggestion struct {
	category Category
	text     string
}

// suggestions are emitted in this order for the categories present.
var suggestions = []suggestion{
	{CategorySyntax, "Check syntax, missing semicolons, parentheses, or brackets"},
	{CategoryReference, "Verify variable names, method signatures, and import statements"},
	{CategoryDuplicate, "Remove duplicate declarations or rename conflicting elements"},
	{CategoryTestFailure, "Review test assertions and expected vs actual values"},
	{CategoryCoverage, "Add more test methods or increase test coverage above 75%"},
	{CategoryPermission, "Check user permissions and field-level security settings"},
	{CategoryMissingRequired, "Add missing required fields or provide default values"},
}

// FallbackSuggestion is used when no present category has a dedicated suggestion.
const FallbackSuggestion = "Review the error messages above and check the referenced components for issues"

// SuggestionFor returns the dedicated suggestion for a category, if it has one.
func SuggestionFor(c Category) (string, bool) {
	for _, s := range suggestions {
		if s.category == c {
			return s.text, true
		}
	}
	return "", false
}
