package sf

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

// ForceIgnoreFile lists paths that are never deployed, in gitignore syntax.
const ForceIgnoreFile = ".forceignore"

// defaultIgnores always apply, matching the CLI's own defaults.
var defaultIgnores = []string{
	"**/*.dup",
	"**/.*",
	"**/package2-descriptor.json",
	"**/package2-manifest.json",
}

// folderTypes maps the conventional source folders onto metadata types.
var folderTypes = map[string]string{
	"classes":             "ApexClass",
	"triggers":            "ApexTrigger",
	"pages":               "ApexPage",
	"components":          "ApexComponent",
	"lwc":                 "LightningComponentBundle",
	"aura":                "AuraDefinitionBundle",
	"objects":             "CustomObject",
	"fields":              "CustomField",
	"layouts":             "Layout",
	"flexipages":          "FlexiPage",
	"flows":               "Flow",
	"permissionsets":      "PermissionSet",
	"profiles":            "Profile",
	"staticresources":     "StaticResource",
	"tabs":                "CustomTab",
	"applications":        "CustomApplication",
	"labels":              "CustomLabels",
	"customMetadata":      "CustomMetadata",
	"email":               "EmailTemplate",
	"reports":             "Report",
	"dashboards":          "Dashboard",
	"namedCredentials":    "NamedCredential",
	"remoteSiteSettings":  "RemoteSiteSetting",
	"customPermissions":   "CustomPermission",
	"contentassets":       "ContentAsset",
	"quickActions":        "QuickAction",
	"globalValueSets":     "GlobalValueSet",
	"standardValueSets":   "StandardValueSet",
	"sharingRules":        "SharingRules",
	"workflows":           "Workflow",
	"validationRules":     "ValidationRule",
	"recordTypes":         "RecordType",
	"listViews":           "ListView",
	"compactLayouts":      "CompactLayout",
	"webLinks":            "WebLink",
	"messageChannels":     "LightningMessageChannel",
	"experiences":         "ExperienceBundle",
	"externalCredentials": "ExternalCredential",
}

// bundleTypes are deployed as a directory rather than file by file.
var bundleTypes = map[string]bool{
	"LightningComponentBundle": true,
	"AuraDefinitionBundle":     true,
	"ExperienceBundle":         true,
}

// ComponentSetBuilder resolves explicit source paths or package.xml manifests.
type ComponentSetBuilder struct{}

var _ deploy.ComponentSetBuilder = ComponentSetBuilder{}

func (b ComponentSetBuilder) Build(_ context.Context, spec deploy.BuildSpec) (*deploy.ComponentSet, error) {
	if spec.Project == nil {
		return nil, errors.New(errors.CodeInternalError, domain, "component set requires a project", nil)
	}
	set := &deploy.ComponentSet{
		ProjectDir: spec.Project.Dir,
		APIVersion: APIVersion(spec.Project),
	}

	if spec.ManifestPath != "" {
		manifest, components, err := readManifest(spec.Project.Dir, spec.ManifestPath)
		if err != nil {
			return nil, err
		}
		set.ManifestPath = manifest
		set.Components = components
		return set, nil
	}

	matcher, err := LoadForceIgnore(spec.Project.Dir)
	if err != nil {
		return nil, err
	}
	for _, p := range spec.SourcePaths {
		components, err := collectSource(spec.Project.Dir, p, matcher)
		if err != nil {
			return nil, err
		}
		set.Components = append(set.Components, components...)
	}
	return set, nil
}

// LoadForceIgnore compiles the defaults plus the project's .forceignore, when present.
func LoadForceIgnore(projectDir string) (*ignore.GitIgnore, error) {
	lines := append([]string(nil), defaultIgnores...)

	data, err := os.ReadFile(filepath.Join(projectDir, ForceIgnoreFile))
	switch {
	case err == nil:
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
	case !os.IsNotExist(err):
		return nil, errors.New(errors.CodeIoError, domain, "failed to read .forceignore", err)
	}
	return ignore.CompileIgnoreLines(lines...), nil
}

// resolveInProject returns p as an absolute path and as a slash separated path relative to
// projectDir, rejecting paths outside the project.
func resolveInProject(projectDir, p string) (string, string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(projectDir, p)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(projectDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", errors.New(errors.CodeInvalidParameter, domain,
			fmt.Sprintf("path %s is outside the project directory %s", p, projectDir), nil)
	}
	return abs, filepath.ToSlash(rel), nil
}

func collectSource(projectDir, p string, matcher *ignore.GitIgnore) ([]deploy.Component, error) {
	abs, _, err := resolveInProject(projectDir, p)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeFileNotFound, domain,
				fmt.Sprintf("source path %s does not exist", p), nil)
		}
		return nil, errors.New(errors.CodeIoError, domain, fmt.Sprintf("failed to stat %s", p), err)
	}

	var components []deploy.Component
	seenBundles := make(map[string]bool)

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(projectDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if rel != "." && matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		c, ok := componentFor(rel)
		if !ok {
			return nil
		}
		if bundleTypes[c.Type] {
			if seenBundles[c.Path] {
				return nil
			}
			seenBundles[c.Path] = true
		}
		components = append(components, c)
		return nil
	})
	if err != nil {
		return nil, errors.New(errors.CodeIoError, domain, fmt.Sprintf("failed to walk %s", p), err)
	}
	return components, nil
}

// componentFor infers the metadata component a source file belongs to. Metadata companions
// of code files are skipped since the CLI pairs them itself.
func componentFor(rel string) (deploy.Component, bool) {
	segments := strings.Split(rel, "/")
	base := segments[len(segments)-1]

	for i := len(segments) - 2; i >= 0; i-- {
		typ, ok := folderTypes[segments[i]]
		if !ok {
			continue
		}
		if bundleTypes[typ] {
			// files directly under the bundle folder, such as jsconfig.json, belong to no bundle
			if i+2 >= len(segments) {
				return deploy.Component{}, false
			}
			return deploy.Component{
				Type:     typ,
				FullName: segments[i+1],
				Path:     strings.Join(segments[:i+2], "/"),
			}, true
		}
		if strings.HasSuffix(base, "-meta.xml") && hasCodeCompanion(base) {
			return deploy.Component{}, false
		}
		name := fullName(base)
		// children of an object are qualified by it: objects/Account/fields/Rating__c
		if i >= 2 && segments[i-2] == "objects" {
			name = segments[i-1] + "." + name
		}
		return deploy.Component{Type: typ, FullName: name, Path: rel}, true
	}

	if strings.HasSuffix(base, "-meta.xml") {
		return deploy.Component{Type: "Unknown", FullName: fullName(base), Path: rel}, true
	}
	return deploy.Component{}, false
}

var codeSuffixes = []string{".cls-meta.xml", ".trigger-meta.xml", ".page-meta.xml", ".component-meta.xml", ".resource-meta.xml", ".asset-meta.xml", ".email-meta.xml"}

func hasCodeCompanion(base string) bool {
	for _, s := range codeSuffixes {
		if strings.HasSuffix(base, s) {
			return true
		}
	}
	return false
}

// fullName strips every extension, so Account.object-meta.xml and MyClass.cls both yield the
// bare member name.
func fullName(base string) string {
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}

type packageManifest struct {
	XMLName xml.Name `xml:"Package"`
	Types   []struct {
		Members []string `xml:"members"`
		Name    string   `xml:"name"`
	} `xml:"types"`
	Version string `xml:"version"`
}

func readManifest(projectDir, p string) (string, []deploy.Component, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(projectDir, p)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, errors.New(errors.CodeFileNotFound, domain, fmt.Sprintf("manifest %s does not exist", p), nil)
		}
		return "", nil, errors.New(errors.CodeIoError, domain, fmt.Sprintf("failed to read manifest %s", p), err)
	}

	var manifest packageManifest
	if err := xml.Unmarshal(data, &manifest); err != nil {
		return "", nil, errors.New(errors.CodeValidationFailed, domain, fmt.Sprintf("manifest %s is not a valid package.xml", p), err)
	}

	var components []deploy.Component
	for _, t := range manifest.Types {
		name := strings.TrimSpace(t.Name)
		for _, m := range t.Members {
			components = append(components, deploy.Component{Type: name, FullName: strings.TrimSpace(m)})
		}
	}
	return abs, components, nil
}
