package sf

import (
	"context"
	"fmt"
	"strings"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

// sourceMemberProbe succeeds only in orgs that track source.
const sourceMemberProbe = "SELECT Id FROM SourceMember LIMIT 1"

// OrgResolver resolves orgs with `sf org display`.
type OrgResolver struct {
	client *Client
}

var _ deploy.OrgResolver = &OrgResolver{}

func NewOrgResolver(client *Client) *OrgResolver {
	return &OrgResolver{client: client}
}

type orgDisplay struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Alias           string `json:"alias"`
	InstanceURL     string `json:"instanceUrl"`
	APIVersion      string `json:"apiVersion"`
	ConnectedStatus string `json:"connectedStatus"`
}

// ResolveOrg runs `sf org display` from projectDir so project-local aliases and defaults apply.
func (r *OrgResolver) ResolveOrg(ctx context.Context, orgIdentifier, projectDir string) (*deploy.Connection, error) {
	var info orgDisplay
	if err := r.client.run(ctx, projectDir, &info, "org", "display", "--target-org", orgIdentifier); err != nil {
		return nil, err
	}
	if info.Username == "" {
		return nil, errors.New(errors.CodeOrgNotFound, domain,
			fmt.Sprintf("No authenticated org found for %s", orgIdentifier), nil)
	}
	if s := info.ConnectedStatus; s != "" && s != "Connected" && !strings.HasPrefix(s, "Unknown") {
		return nil, errors.New(errors.CodeOrgNotFound, domain,
			fmt.Sprintf("The org %s is not connected: %s", orgIdentifier, s), nil)
	}

	r.client.logger.Debug().Str("username", info.Username).Str("api_version", info.APIVersion).Msg("Org resolved")

	return &deploy.Connection{
		OrgID:       info.ID,
		Username:    info.Username,
		Alias:       info.Alias,
		InstanceURL: info.InstanceURL,
		APIVersion:  info.APIVersion,
		ProjectDir:  projectDir,
	}, nil
}

// TracksSource probes the SourceMember tooling object, which only exists in orgs with source
// tracking.
func (r *OrgResolver) TracksSource(ctx context.Context, conn *deploy.Connection) (bool, error) {
	err := r.client.run(ctx, conn.ProjectDir, nil,
		"data", "query", "--query", sourceMemberProbe, "--use-tooling-api", "--target-org", conn.Target())
	if err == nil {
		return true, nil
	}
	if errors.CodeOf(err) == errors.CodeCommandFailed && isUnsupportedType(err.Error()) {
		return false, nil
	}
	return false, err
}

func isUnsupportedType(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "invalid_type") ||
		strings.Contains(m, "sobject type 'sourcemember' is not supported")
}
