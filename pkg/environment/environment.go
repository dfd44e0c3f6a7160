// Package environment is a best-effort pure function from (Workflow, host
// state) to a map of CI-style environment variables, derived from the
// host's git repository via github.com/go-git/go-git/v5 when one is
// present.
package environment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/sisaku-security/wrkflw/pkg/ast"
)

const (
	fallbackSHA        = "0000000000000000000000000000000000000000"
	fallbackRef         = "refs/heads/main"
	fallbackRepository = "wrkflw"
)

// Build computes the CI variable map for wf, rooted at cwd. Every lookup is
// best-effort: a missing or unreadable git repository never causes an
// error, it only widens which fallback constants get used.
func Build(wf *ast.Workflow, cwd string) map[string]string {
	env := map[string]string{}

	env["GITHUB_WORKFLOW"] = wf.Name
	if len(wf.Triggers) > 0 {
		env["GITHUB_EVENT_NAME"] = wf.Triggers[0]
	}

	repo, sha, ref, root := inspectGit(cwd)

	if repo != "" {
		env["GITHUB_REPOSITORY"] = repo
	} else {
		env["GITHUB_REPOSITORY"] = fallbackRepository + "/" + filepath.Base(cwd)
	}
	if sha != "" {
		env["GITHUB_SHA"] = sha
	} else {
		env["GITHUB_SHA"] = fallbackSHA
	}
	if ref != "" {
		env["GITHUB_REF"] = ref
	} else {
		env["GITHUB_REF"] = fallbackRef
	}

	workspace := root
	if workspace == "" {
		if abs, err := filepath.Abs(cwd); err == nil {
			workspace = abs
		} else {
			workspace = cwd
		}
	}
	env["GITHUB_WORKSPACE"] = workspace

	env["GITHUB_RUN_ID"] = fmt.Sprintf("%d", time.Now().Unix())

	tmp := os.TempDir()
	env["RUNNER_TEMP"] = filepath.Join(tmp, "wrkflw-runner-temp")
	home, err := os.UserHomeDir()
	if err != nil {
		home = tmp
	}
	env["RUNNER_TOOL_CACHE"] = filepath.Join(home, ".wrkflw", "tool-cache")

	return env
}

// inspectGit opens the repository at or above cwd and extracts the origin
// remote URL (normalized to "owner/repo"), HEAD sha, branch name, and
// worktree root. Any failure returns four empty strings.
func inspectGit(cwd string) (repo, sha, ref, root string) {
	r, err := git.PlainOpenWithOptions(cwd, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", "", "", ""
	}

	if wt, err := r.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}

	if remote, err := r.Remote("origin"); err == nil {
		cfg := remote.Config()
		if len(cfg.URLs) > 0 {
			repo = parseOwnerRepo(cfg.URLs[0])
		}
	}

	head, err := r.Head()
	if err != nil {
		return repo, "", "", root
	}
	sha = head.Hash().String()
	if head.Name().IsBranch() {
		ref = "refs/heads/" + head.Name().Short()
	}
	return repo, sha, ref, root
}

// parseOwnerRepo accepts both SSH ("git@github.com:owner/repo.git") and
// HTTPS ("https://github.com/owner/repo.git") remote URL forms.
func parseOwnerRepo(url string) string {
	trimmed := strings.TrimSuffix(url, ".git")
	switch {
	case strings.Contains(trimmed, "@") && strings.Contains(trimmed, ":"):
		parts := strings.SplitN(trimmed, ":", 2)
		if len(parts) == 2 {
			return strings.TrimPrefix(parts[1], "/")
		}
	case strings.Contains(trimmed, "://"):
		parts := strings.SplitN(trimmed, "://", 2)
		if len(parts) == 2 {
			segs := strings.SplitN(parts[1], "/", 2)
			if len(segs) == 2 {
				return segs[1]
			}
		}
	}
	return ""
}
