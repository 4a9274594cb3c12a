// Package deploy holds the deploy/validate request model, the deployment result wire types
// and the collaborator interfaces the request handler depends on.
package deploy

import (
	"strings"

	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

// TestLevel is the Apex test level passed to a deployment.
type TestLevel string

const (
	TestLevelNoTestRun         TestLevel = "NoTestRun"
	TestLevelRunSpecifiedTests TestLevel = "RunSpecifiedTests"
	TestLevelRunLocalTests     TestLevel = "RunLocalTests"
	TestLevelRunAllTestsInOrg  TestLevel = "RunAllTestsInOrg"
)

// RequestableTestLevels are the levels a caller may pass as apexTestLevel.
// RunSpecifiedTests is implied by apexTests and never requested directly.
var RequestableTestLevels = []TestLevel{
	TestLevelNoTestRun,
	TestLevelRunLocalTests,
	TestLevelRunAllTestsInOrg,
}

// Request is a single deploy or validate invocation.
type Request struct {
	SourceDir        []string  `json:"sourceDir,omitempty"`
	ManifestPath     string    `json:"manifestPath,omitempty"`
	CheckOnly        bool      `json:"checkOnly,omitempty"`
	ApexTestLevel    TestLevel `json:"apexTestLevel,omitempty"`
	ApexTests        []string  `json:"apexTests,omitempty"`
	OrgIdentifier    string    `json:"orgIdentifier"`
	ProjectDirectory string    `json:"projectDirectory"`
}

// Mode returns the capitalized operation label used in responses.
func (r Request) Mode() string {
	if r.CheckOnly {
		return "Validation"
	}
	return "Deploy"
}

// Verb returns the lower-case operation verb used in responses.
func (r Request) Verb() string {
	if r.CheckOnly {
		return "validate"
	}
	return "deploy"
}

// HasExplicitTargets reports whether the caller named the components to deploy.
func (r Request) HasExplicitTargets() bool {
	return len(r.SourceDir) > 0 || r.ManifestPath != ""
}

// Validate enforces the parameter rules that must hold before any collaborator is called.
// The order of the checks is part of the contract.
func (r Request) Validate() error {
	if len(r.ApexTests) > 0 && r.ApexTestLevel != "" {
		return errors.New(errors.CodeValidationFailed, "deploy",
			"You can't specify both `apexTests` and `apexTestLevel` parameters.", nil)
	}
	if len(r.SourceDir) > 0 && r.ManifestPath != "" {
		return errors.New(errors.CodeValidationFailed, "deploy",
			"You can't specify both `sourceDir` and `manifestPath` parameters.", nil)
	}
	if strings.TrimSpace(r.OrgIdentifier) == "" {
		return errors.New(errors.CodeMissingParameter, "deploy",
			"The org identifier is missing. Resolve the target org username or alias first, then pass it as `orgIdentifier`.", nil)
	}
	if strings.TrimSpace(r.ProjectDirectory) == "" {
		return errors.New(errors.CodeMissingParameter, "deploy",
			"The project directory is missing. Pass the root of the Salesforce DX project as `projectDirectory`.", nil)
	}
	if r.ApexTestLevel != "" && !isRequestableTestLevel(r.ApexTestLevel) {
		return errors.New(errors.CodeInvalidParameter, "deploy",
			"`apexTestLevel` must be one of NoTestRun, RunLocalTests or RunAllTestsInOrg.", nil)
	}
	return nil
}

// Options translates the request into deploy options.
func (r Request) Options() Options {
	opts := Options{CheckOnly: r.CheckOnly}
	switch {
	case len(r.ApexTests) > 0:
		opts.TestLevel = TestLevelRunSpecifiedTests
		opts.RunTests = append([]string(nil), r.ApexTests...)
	case r.ApexTestLevel != "":
		opts.TestLevel = r.ApexTestLevel
	}
	return opts
}

func isRequestableTestLevel(level TestLevel) bool {
	for _, l := range RequestableTestLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Options are passed through to the deploy executor. An empty TestLevel lets the org default apply.
type Options struct {
	CheckOnly bool
	TestLevel TestLevel
	RunTests  []string
}
