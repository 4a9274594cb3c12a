package sf

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

// SourceTracker computes local changes with `sf project deploy preview`.
type SourceTracker struct {
	client *Client
}

var _ deploy.SourceTracker = &SourceTracker{}

func NewSourceTracker(client *Client) *SourceTracker {
	return &SourceTracker{client: client}
}

type previewFile struct {
	FullName            string `json:"fullName"`
	Type                string `json:"type"`
	Path                string `json:"path"`
	ProjectRelativePath string `json:"projectRelativePath"`
	Conflict            bool   `json:"conflict"`
	Ignored             bool   `json:"ignored"`
	Operation           string `json:"operation"`
}

type previewResult struct {
	Ignored    []previewFile `json:"ignored"`
	Conflicts  []previewFile `json:"conflicts"`
	ToDeploy   []previewFile `json:"toDeploy"`
	ToDelete   []previewFile `json:"toDelete"`
	ToRetrieve []previewFile `json:"toRetrieve"`
}

// LocalChanges returns the locally changed components awaiting deployment. Conflicts with
// remote changes are reported as an error rather than silently overwritten.
func (t *SourceTracker) LocalChanges(ctx context.Context, conn *deploy.Connection, project *deploy.Project) (*deploy.ComponentSet, error) {
	var preview previewResult
	if err := t.client.run(ctx, project.Dir, &preview,
		"project", "deploy", "preview", "--target-org", conn.Target()); err != nil {
		return nil, err
	}

	if len(preview.Conflicts) > 0 {
		names := make([]string, 0, len(preview.Conflicts))
		for _, c := range preview.Conflicts {
			names = append(names, fmt.Sprintf("%s:%s", c.Type, c.FullName))
		}
		return nil, errors.New(errors.CodeValidationFailed, domain,
			fmt.Sprintf("local changes conflict with changes in the org: %s. Retrieve or resolve them first, or name the components with `sourceDir`",
				strings.Join(names, ", ")), nil)
	}

	set := &deploy.ComponentSet{
		ProjectDir: project.Dir,
		APIVersion: APIVersion(project),
	}
	for _, f := range preview.ToDeploy {
		if f.Ignored {
			continue
		}
		set.Components = append(set.Components, deploy.Component{
			Type:     f.Type,
			FullName: f.FullName,
			Path:     relativePath(project.Dir, f),
		})
	}

	t.client.logger.Debug().
		Int("to_deploy", len(set.Components)).
		Int("to_delete", len(preview.ToDelete)).
		Int("ignored", len(preview.Ignored)).
		Msg("Source tracking preview")

	return set, nil
}

func relativePath(projectDir string, f previewFile) string {
	if f.ProjectRelativePath != "" {
		return filepath.ToSlash(f.ProjectRelativePath)
	}
	if f.Path == "" {
		return ""
	}
	if rel, err := filepath.Rel(projectDir, f.Path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(f.Path)
}
