package sf

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

// ProjectFile is the name of the Salesforce DX project descriptor.
const ProjectFile = "sfdx-project.json"

// ProjectResolver reads sfdx-project.json.
type ProjectResolver struct{}

var _ deploy.ProjectResolver = ProjectResolver{}

type projectDescriptor struct {
	PackageDirectories []struct {
		Path    string `json:"path"`
		Default bool   `json:"default"`
	} `json:"packageDirectories"`
	SourceAPIVersion string `json:"sourceApiVersion"`
}

func (ProjectResolver) ResolveProject(_ context.Context, dir string) (*deploy.Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.New(errors.CodeProjectInvalid, domain, fmt.Sprintf("invalid project directory %s", dir), err)
	}

	data, err := os.ReadFile(filepath.Join(abs, ProjectFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeProjectInvalid, domain,
				fmt.Sprintf("%s is not a Salesforce DX project: %s not found", abs, ProjectFile), nil)
		}
		return nil, errors.New(errors.CodeIoError, domain, fmt.Sprintf("failed to read %s", ProjectFile), err)
	}

	var desc projectDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, errors.New(errors.CodeProjectInvalid, domain, fmt.Sprintf("failed to parse %s", ProjectFile), err)
	}
	if len(desc.PackageDirectories) == 0 {
		return nil, errors.New(errors.CodeProjectInvalid, domain,
			fmt.Sprintf("%s declares no packageDirectories", ProjectFile), nil)
	}

	project := &deploy.Project{Dir: abs}
	for _, pkg := range desc.PackageDirectories {
		p := filepath.ToSlash(filepath.Clean(pkg.Path))
		project.PackageDirectories = append(project.PackageDirectories, p)
		if pkg.Default && project.DefaultPackage == "" {
			project.DefaultPackage = p
		}
	}
	if project.DefaultPackage == "" {
		project.DefaultPackage = project.PackageDirectories[0]
	}

	if desc.SourceAPIVersion != "" {
		v, err := semver.NewVersion(desc.SourceAPIVersion)
		if err != nil {
			return nil, errors.New(errors.CodeProjectInvalid, domain,
				fmt.Sprintf("invalid sourceApiVersion %q", desc.SourceAPIVersion), err)
		}
		project.SourceAPIVersion = v
	}
	return project, nil
}

// APIVersion renders a project's sourceApiVersion as "major.minor", or "" when unset.
func APIVersion(p *deploy.Project) string {
	if p == nil || p.SourceAPIVersion == nil {
		return ""
	}
	return fmt.Sprintf("%d.%d", p.SourceAPIVersion.Major(), p.SourceAPIVersion.Minor())
}
