package sf

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

// Allow-list tokens with special meaning.
const (
	AllowAllOrgs        = "ALLOW_ALL_ORGS"
	DefaultTargetOrg    = "DEFAULT_TARGET_ORG"
	DefaultTargetDevHub = "DEFAULT_TARGET_DEV_HUB"
)

// Config keys the default tokens resolve through.
const (
	configKeyTargetOrg    = "target-org"
	configKeyTargetDevHub = "target-dev-hub"
)

// AllowList restricts which orgs the server may deploy to. Defaults and aliases are read on
// every check so changes made with the CLI apply without a restart.
type AllowList struct {
	entries []string
	homeDir string
	logger  zerolog.Logger
}

var _ deploy.AccessChecker = &AllowList{}

// NewAllowList creates an allow-list. homeDir locates the user-level CLI configuration; an empty
// value means the current user's home directory.
func NewAllowList(entries []string, homeDir string, logger zerolog.Logger) *AllowList {
	if homeDir == "" {
		if h, err := os.UserHomeDir(); err == nil {
			homeDir = h
		}
	}
	return &AllowList{
		entries: entries,
		homeDir: homeDir,
		logger:  logger.With().Str("component", "org_allow_list").Logger(),
	}
}

// AllowsAll reports whether the list contains ALLOW_ALL_ORGS.
func (a *AllowList) AllowsAll() bool {
	for _, e := range a.entries {
		if e == AllowAllOrgs {
			return true
		}
	}
	return false
}

// CheckOrgAccess resolves DEFAULT_TARGET_ORG and DEFAULT_TARGET_DEV_HUB against projectDir
// first and the user configuration second, then matches orgIdentifier directly or through
// its alias.
func (a *AllowList) CheckOrgAccess(_ context.Context, orgIdentifier, projectDir string) error {
	if len(a.entries) == 0 {
		return errors.New(errors.CodeOrgNotAllowed, domain,
			"No orgs are allowed. Set MCP_ALLOWED_ORGS (or allowed_orgs in the config file) to the usernames or aliases this server may deploy to.", nil)
	}
	if a.AllowsAll() {
		return nil
	}

	aliases := a.readAliases()
	allowed := make(map[string]bool)
	for _, entry := range a.entries {
		switch entry {
		case DefaultTargetOrg:
			if v := a.configValue(projectDir, configKeyTargetOrg); v != "" {
				allowed[v] = true
			}
		case DefaultTargetDevHub:
			if v := a.configValue(projectDir, configKeyTargetDevHub); v != "" {
				allowed[v] = true
			}
		default:
			allowed[entry] = true
		}
	}

	// Expand every allowed alias to its username so either spelling matches.
	for name := range allowed {
		if username, ok := aliases[name]; ok {
			allowed[username] = true
		}
	}

	if allowed[orgIdentifier] {
		return nil
	}
	if username, ok := aliases[orgIdentifier]; ok && allowed[username] {
		return nil
	}

	a.logger.Warn().Str("org", orgIdentifier).Msg("Org rejected by allow-list")
	return errors.New(errors.CodeOrgNotAllowed, domain,
		fmt.Sprintf("The org %s is not in the allowed orgs list. Add its username or alias to MCP_ALLOWED_ORGS to deploy to it.", orgIdentifier), nil)
}

// configValue looks key up in <projectDir>/.sf/config.json, then ~/.sf/config.json.
func (a *AllowList) configValue(projectDir, key string) string {
	var dirs []string
	if projectDir != "" {
		dirs = append(dirs, projectDir)
	}
	if a.homeDir != "" {
		dirs = append(dirs, a.homeDir)
	}
	for _, dir := range dirs {
		values := make(map[string]interface{})
		if !a.readJSON(filepath.Join(dir, ".sf", "config.json"), &values) {
			continue
		}
		if v, ok := values[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// readAliases returns alias to username from ~/.sfdx/alias.json.
func (a *AllowList) readAliases() map[string]string {
	var file struct {
		Orgs map[string]string `json:"orgs"`
	}
	if a.homeDir == "" || !a.readJSON(filepath.Join(a.homeDir, ".sfdx", "alias.json"), &file) {
		return map[string]string{}
	}
	if file.Orgs == nil {
		return map[string]string{}
	}
	return file.Orgs
}

func (a *AllowList) readJSON(path string, out interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			a.logger.Debug().Err(err).Str("path", path).Msg("Unreadable CLI config")
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		a.logger.Debug().Err(err).Str("path", path).Msg("Malformed CLI config")
		return false
	}
	return true
}
