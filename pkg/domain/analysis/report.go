package analysis

import (
	"fmt"
	"strings"
)

// UnknownError is shown for failures without any problem text.
const UnknownError = "Unknown error"

// NoFailureDetails is the listing shown when a failed job reported no failure items.
const NoFailureDetails = "No component, test, or coverage failures were reported."

// Location renders component[:line[:column]].
func (r Record) Location() string {
	var b strings.Builder
	b.WriteString(r.Component)
	if r.Line > 0 {
		fmt.Fprintf(&b, ":%d", r.Line)
	}
	if r.Line > 0 && r.Column > 0 {
		fmt.Fprintf(&b, ":%d", r.Column)
	}
	return b.String()
}

// FormatErrors renders one numbered paragraph per record.
func FormatErrors(a *Analysis) string {
	if a == nil || len(a.Records) == 0 {
		if a != nil && a.JobError != "" {
			return fmt.Sprintf("%s\n   Job error: %s", NoFailureDetails, a.JobError)
		}
		return NoFailureDetails
	}
	paragraphs := make([]string, 0, len(a.Records))
	for i, r := range a.Records {
		problem := r.Problem
		if problem == "" {
			problem = UnknownError
		}
		paragraphs = append(paragraphs, fmt.Sprintf("%d. %s\n   Problem: %s\n   Type: %s",
			i+1, r.Location(), problem, r.Category))
	}
	return strings.Join(paragraphs, "\n\n")
}

// FormatSummary renders one count line per category present.
func FormatSummary(a *Analysis) string {
	var b strings.Builder
	b.WriteString("Error Summary:")
	if a != nil {
		for _, g := range a.ByCategory {
			fmt.Fprintf(&b, "\n  %s: %d error(s)", g.Category, len(g.Records))
		}
	}
	return b.String()
}

// FormatSuggestions renders the remediation hints.
func FormatSuggestions(a *Analysis) string {
	var b strings.Builder
	b.WriteString("Suggestions:")
	hints := []string{FallbackSuggestion}
	if a != nil && len(a.Suggestions) > 0 {
		hints = a.Suggestions
	}
	for _, s := range hints {
		fmt.Fprintf(&b, "\n  - %s", s)
	}
	return b.String()
}

// FormatReport renders the full failure report for a deploy or validate job.
// mode is "Deploy" or "Validation".
func FormatReport(mode string, a *Analysis, rawDetails string) string {
	total := 0
	if a != nil {
		total = a.TotalCount
	}
	return fmt.Sprintf("%s failed with %d error(s):\n\n%s\n\n%s\n\n%s\n\nRaw details: %s",
		mode, total, FormatErrors(a), FormatSummary(a), FormatSuggestions(a), rawDetails)
}
