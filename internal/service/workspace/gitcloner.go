package workspace

import (
	"context"
	"os"

	"repo_onboarder/pkg/github"
	"repo_onboarder/pkg/gitutil"
)

// GitCloner clones repositories with git, resolving the default branch
// through the GitHub API first. It implements Cloner.
type GitCloner struct {
	Git    gitutil.Client
	GitHub *github.Client
	Token  string
}

// Clone performs a shallow clone of repoURL into dir and returns the
// HEAD commit. Branch resolution failures are ignored; git then clones
// the remote default branch.
func (c GitCloner) Clone(ctx context.Context, repoURL, dir string) (string, error) {
	branch := ""
	if owner, repo, err := github.ParseRepoURL(repoURL); err == nil && c.GitHub != nil {
		if b, err := c.GitHub.DefaultBranch(ctx, owner, repo); err == nil {
			branch = b
		}
	}

	cloneURL := repoURL
	if c.Token != "" {
		if injected, err := gitutil.InjectToken(repoURL, c.Token); err == nil {
			cloneURL = injected
		}
	}

	if err := c.Git.CloneShallow(ctx, cloneURL, dir, branch); err != nil {
		// A stale default branch from the API is retried without one.
		if branch == "" {
			return "", err
		}
		_ = os.RemoveAll(dir)
		if retryErr := c.Git.CloneShallow(ctx, cloneURL, dir, ""); retryErr != nil {
			return "", err
		}
	}

	return c.Git.HeadCommit(ctx, dir)
}
