package sf

import (
	"context"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcekit/deploy-assist/pkg/domain/deploy"
	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

func trackedProject() (*deploy.Connection, *deploy.Project) {
	conn := &deploy.Connection{Username: "scratch@example.com", Alias: "scratch", ProjectDir: "/work/proj"}
	project := &deploy.Project{
		Dir:                "/work/proj",
		PackageDirectories: []string{"force-app"},
		DefaultPackage:     "force-app",
		SourceAPIVersion:   semver.MustParse("61.0"),
	}
	return conn, project
}

func TestLocalChanges(t *testing.T) {
	client, runner := newFakeClient(map[string]FakeResponse{
		"project deploy preview": {Stdout: `{
  "status": 0,
  "result": {
    "ignored": [{"fullName": "Secret", "type": "ApexClass", "path": "/work/proj/force-app/main/default/classes/Secret.cls", "ignored": true}],
    "conflicts": [],
    "toDeploy": [
      {"fullName": "Foo", "type": "ApexClass", "projectRelativePath": "force-app/main/default/classes/Foo.cls", "operation": "deploy"},
      {"fullName": "myCmp", "type": "LightningComponentBundle", "path": "/work/proj/force-app/main/default/lwc/myCmp", "operation": "deploy"},
      {"fullName": "Skip", "type": "ApexClass", "path": "/work/proj/force-app/main/default/classes/Skip.cls", "ignored": true}
    ],
    "toDelete": [{"fullName": "Old", "type": "ApexClass", "operation": "deletePost"}],
    "toRetrieve": []
  }
}`},
	})
	conn, project := trackedProject()

	set, err := NewSourceTracker(client).LocalChanges(context.Background(), conn, project)
	require.NoError(t, err)

	assert.Equal(t, "/work/proj", set.ProjectDir)
	assert.Equal(t, "61.0", set.APIVersion)
	assert.Equal(t, []deploy.Component{
		{Type: "ApexClass", FullName: "Foo", Path: "force-app/main/default/classes/Foo.cls"},
		{Type: "LightningComponentBundle", FullName: "myCmp", Path: "force-app/main/default/lwc/myCmp"},
	}, set.Components)

	calls := runner.CallsTo("project deploy preview")
	require.Len(t, calls, 1)
	assert.Equal(t, "/work/proj", calls[0].Dir)
	assert.Equal(t, []string{"project", "deploy", "preview", "--target-org", "scratch@example.com", "--json"}, calls[0].Args)
}

func TestLocalChangesEmpty(t *testing.T) {
	client, _ := newFakeClient(map[string]FakeResponse{
		"project deploy preview": {Stdout: `{"status":0,"result":{"ignored":[],"conflicts":[],"toDeploy":[],"toDelete":[],"toRetrieve":[]}}`},
	})
	conn, project := trackedProject()

	set, err := NewSourceTracker(client).LocalChanges(context.Background(), conn, project)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Size())
}

func TestLocalChangesConflicts(t *testing.T) {
	client, _ := newFakeClient(map[string]FakeResponse{
		"project deploy preview": {Stdout: `{"status":0,"result":{"conflicts":[
      {"fullName":"Foo","type":"ApexClass","conflict":true},
      {"fullName":"Account","type":"CustomObject","conflict":true}
    ],"toDeploy":[{"fullName":"Foo","type":"ApexClass"}]}}`},
	})
	conn, project := trackedProject()

	_, err := NewSourceTracker(client).LocalChanges(context.Background(), conn, project)
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationFailed, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "ApexClass:Foo, CustomObject:Account")
	assert.Contains(t, err.Error(), "`sourceDir`")
}

func TestLocalChangesCommandFailure(t *testing.T) {
	client, _ := newFakeClient(map[string]FakeResponse{
		"project deploy preview": {Stdout: `{"status":1,"name":"NonSourceTrackedOrgError","message":"This command can only be used on orgs that have source tracking enabled"}`},
	})
	conn, project := trackedProject()

	_, err := NewSourceTracker(client).LocalChanges(context.Background(), conn, project)
	require.Error(t, err)
	assert.Equal(t, errors.CodeCommandFailed, errors.CodeOf(err))
}
