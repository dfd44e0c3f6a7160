package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sisaku-security/wrkflw/pkg/ast"
)

func TestParseOwnerRepoSSH(t *testing.T) {
	assert.Equal(t, "octocat/hello-world", parseOwnerRepo("git@github.com:octocat/hello-world.git"))
}

func TestParseOwnerRepoHTTPS(t *testing.T) {
	assert.Equal(t, "octocat/hello-world", parseOwnerRepo("https://github.com/octocat/hello-world.git"))
}

func TestParseOwnerRepoHTTPSWithoutDotGitSuffix(t *testing.T) {
	assert.Equal(t, "octocat/hello-world", parseOwnerRepo("https://github.com/octocat/hello-world"))
}

func TestParseOwnerRepoUnrecognizedFormReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", parseOwnerRepo("not-a-url"))
}

func TestBuildFallsBackOutsideGitRepository(t *testing.T) {
	dir := t.TempDir()
	wf := &ast.Workflow{Name: "ci", Triggers: []string{"push"}}

	env := Build(wf, dir)
	assert.Equal(t, "ci", env["GITHUB_WORKFLOW"])
	assert.Equal(t, "push", env["GITHUB_EVENT_NAME"])
	assert.Equal(t, fallbackSHA, env["GITHUB_SHA"])
	assert.Equal(t, fallbackRef, env["GITHUB_REF"])
	assert.NotEmpty(t, env["GITHUB_WORKSPACE"])
	assert.NotEmpty(t, env["GITHUB_RUN_ID"])
	assert.NotEmpty(t, env["RUNNER_TEMP"])
	assert.NotEmpty(t, env["RUNNER_TOOL_CACHE"])
}

func TestBuildHandlesNoTriggers(t *testing.T) {
	dir := t.TempDir()
	wf := &ast.Workflow{Name: "ci"}
	env := Build(wf, dir)
	_, ok := env["GITHUB_EVENT_NAME"]
	assert.False(t, ok)
}
