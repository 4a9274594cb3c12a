// Package analysis classifies and summarizes the failures of a completed deployment.
package analysis

import (
	"strings"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
)

// UnknownComponent labels failures that carry no component name.
const UnknownComponent = "Unknown"

// Source tells which part of the deployment details a record came from.
type Source string

const (
	SourceComponent Source = "component"
	SourceTest      Source = "test"
	SourceCoverage  Source = "coverage"
)

// Record is the normalized view of one failure.
type Record struct {
	Component string   `json:"component"`
	Line      int      `json:"line,omitempty"`
	Column    int      `json:"column,omitempty"`
	Problem   string   `json:"problem"`
	Category  Category `json:"category"`
	Source    Source   `json:"source"`
}

// CategoryGroup is the records of one category.
type CategoryGroup struct {
	Category Category `json:"category"`
	Records  []Record `json:"records"`
}

// ComponentGroup is the records of one component.
type ComponentGroup struct {
	Component string   `json:"component"`
	Records   []Record `json:"records"`
}

// Analysis is the classified view of a deployment's failures. Groups are ordered by the
// first occurrence of their key.
type Analysis struct {
	TotalCount  int              `json:"totalCount"`
	Records     []Record         `json:"records"`
	ByCategory  []CategoryGroup  `json:"byCategory"`
	ByComponent []ComponentGroup `json:"byComponent"`
	Suggestions []string         `json:"suggestions"`
	// JobError is the job-level failure reason of the result, set only when no failure
	// items were reported.
	JobError string `json:"jobError,omitempty"`
}

// ForCategory returns the records of a category.
func (a *Analysis) ForCategory(c Category) []Record {
	for _, g := range a.ByCategory {
		if g.Category == c {
			return g.Records
		}
	}
	return nil
}

// ForComponent returns the records of a component.
func (a *Analysis) ForComponent(name string) []Record {
	for _, g := range a.ByComponent {
		if g.Component == name {
			return g.Records
		}
	}
	return nil
}

// Categories returns the categories present in first-occurrence order.
func (a *Analysis) Categories() []Category {
	out := make([]Category, 0, len(a.ByCategory))
	for _, g := range a.ByCategory {
		out = append(out, g.Category)
	}
	return out
}

// Components returns the component names present in first-occurrence order.
func (a *Analysis) Components() []string {
	out := make([]string, 0, len(a.ByComponent))
	for _, g := range a.ByComponent {
		out = append(out, g.Component)
	}
	return out
}

type item struct {
	fullName string
	name     string
	line     int
	column   int
	problem  string
	message  string
	source   Source
}

// Analyze classifies the failures of a deployment result. A nil result or one without
// details yields an empty analysis carrying the fallback suggestion.
func Analyze(result *deploy.Result) *Analysis {
	items := collect(result)

	a := &Analysis{
		TotalCount:  len(items),
		Records:     make([]Record, 0, len(items)),
		ByCategory:  []CategoryGroup{},
		ByComponent: []ComponentGroup{},
	}

	categoryIndex := make(map[Category]int)
	componentIndex := make(map[string]int)

	for _, it := range items {
		rec := Record{
			Component: componentName(it),
			Line:      it.line,
			Column:    it.column,
			Problem:   problemText(it),
			Category:  Classify(it.problem + " " + it.message),
			Source:    it.source,
		}
		a.Records = append(a.Records, rec)

		if i, ok := categoryIndex[rec.Category]; ok {
			a.ByCategory[i].Records = append(a.ByCategory[i].Records, rec)
		} else {
			categoryIndex[rec.Category] = len(a.ByCategory)
			a.ByCategory = append(a.ByCategory, CategoryGroup{Category: rec.Category, Records: []Record{rec}})
		}

		if i, ok := componentIndex[rec.Component]; ok {
			a.ByComponent[i].Records = append(a.ByComponent[i].Records, rec)
		} else {
			componentIndex[rec.Component] = len(a.ByComponent)
			a.ByComponent = append(a.ByComponent, ComponentGroup{Component: rec.Component, Records: []Record{rec}})
		}
	}

	a.Suggestions = suggest(categoryIndex)
	if len(items) == 0 {
		a.JobError = jobError(result)
	}
	return a
}

// jobError renders errorMessage with its status code when the code is not already part of it.
func jobError(result *deploy.Result) string {
	if result == nil || result.ErrorMessage == "" {
		return ""
	}
	code := result.ErrorStatusCode
	if code == "" || strings.HasPrefix(result.ErrorMessage, code) {
		return result.ErrorMessage
	}
	return code + ": " + result.ErrorMessage
}

// collect concatenates component failures, test failures and coverage warnings in that order.
func collect(result *deploy.Result) []item {
	if result == nil || result.Details == nil {
		return nil
	}
	details := result.Details

	var items []item
	for _, f := range details.ComponentFailures {
		items = append(items, item{
			fullName: f.FullName,
			line:     int(f.LineNumber),
			column:   int(f.ColumnNumber),
			problem:  f.Problem,
			source:   SourceComponent,
		})
	}
	if details.RunTestResult != nil {
		for _, f := range details.RunTestResult.Failures {
			items = append(items, item{
				name:    f.Name,
				message: f.Message,
				source:  SourceTest,
			})
		}
		for _, w := range details.RunTestResult.CodeCoverageWarnings {
			items = append(items, item{
				name:    w.Name,
				message: w.Message,
				source:  SourceCoverage,
			})
		}
	}
	return items
}

func componentName(it item) string {
	switch {
	case it.fullName != "":
		return it.fullName
	case it.name != "":
		return it.name
	default:
		return UnknownComponent
	}
}

func problemText(it item) string {
	if it.problem != "" {
		return it.problem
	}
	return it.message
}

func suggest(present map[Category]int) []string {
	var out []string
	for _, s := range suggestions {
		if _, ok := present[s.category]; ok {
			out = append(out, s.text)
		}
	}
	if len(out) == 0 {
		out = append(out, FallbackSuggestion)
	}
	return out
}
