package deploy

import (
	"context"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Connection identifies an authenticated org.
type Connection struct {
	OrgID       string `json:"id"`
	Username    string `json:"username"`
	Alias       string `json:"alias,omitempty"`
	InstanceURL string `json:"instanceUrl,omitempty"`
	APIVersion  string `json:"apiVersion,omitempty"`
	// ProjectDir is the directory the connection was resolved from. Adapters run
	// org-scoped commands from it so local config applies.
	ProjectDir string `json:"-"`
}

// Target returns the value adapters pass as the target org.
func (c *Connection) Target() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Alias
}

// Project is a local Salesforce DX project.
type Project struct {
	Dir                string
	PackageDirectories []string
	DefaultPackage     string
	SourceAPIVersion   *semver.Version
}

// Component is a single deployable metadata unit.
type Component struct {
	Type     string `json:"type,omitempty"`
	FullName string `json:"fullName,omitempty"`
	// Path is relative to the project directory.
	Path string `json:"path,omitempty"`
}

// ComponentSet is the collection of components selected for one operation.
type ComponentSet struct {
	ProjectDir   string
	Components   []Component
	ManifestPath string
	// APIVersion is the project's sourceApiVersion, empty to let the org decide.
	APIVersion string
}

// Size returns the number of components in the set.
func (s *ComponentSet) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Components)
}

// SourcePaths returns the distinct component paths in first-seen order.
func (s *ComponentSet) SourcePaths() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(s.Components))
	paths := make([]string, 0, len(s.Components))
	for _, c := range s.Components {
		if c.Path == "" {
			continue
		}
		if _, ok := seen[c.Path]; ok {
			continue
		}
		seen[c.Path] = struct{}{}
		paths = append(paths, c.Path)
	}
	return paths
}

// BuildSpec describes an explicitly targeted component set.
type BuildSpec struct {
	SourcePaths  []string
	ManifestPath string
	Project      *Project
}

// Job is a started deploy or validate operation.
type Job struct {
	ID        string
	CheckOnly bool
	Conn      *Connection
}

// AccessChecker decides whether the server may act on an org. The project directory is
// passed explicitly because project-local configuration affects the decision.
type AccessChecker interface {
	CheckOrgAccess(ctx context.Context, orgIdentifier, projectDir string) error
}

// OrgResolver resolves an org identifier to an authenticated connection.
type OrgResolver interface {
	ResolveOrg(ctx context.Context, orgIdentifier, projectDir string) (*Connection, error)
	TracksSource(ctx context.Context, conn *Connection) (bool, error)
}

// ProjectResolver loads the project rooted at a directory.
type ProjectResolver interface {
	ResolveProject(ctx context.Context, dir string) (*Project, error)
}

// ComponentSetBuilder builds a component set from explicit paths or a manifest.
type ComponentSetBuilder interface {
	Build(ctx context.Context, spec BuildSpec) (*ComponentSet, error)
}

// SourceTracker computes the locally changed components of a project.
type SourceTracker interface {
	LocalChanges(ctx context.Context, conn *Connection, project *Project) (*ComponentSet, error)
}

// Deployer starts deploy or validate jobs and waits for them.
// PollDeploy returns an error whose message contains "timed out" when the wait expires.
type Deployer interface {
	StartDeploy(ctx context.Context, conn *Connection, set *ComponentSet, opts Options) (*Job, error)
	PollDeploy(ctx context.Context, job *Job, timeout time.Duration) (*Result, error)
}
