// Package gitutil runs git commands for workspace management.
package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// Client runs git commands.
type Client struct {
	GitBinary string
}

func (c Client) gitBinary() string {
	if c.GitBinary == "" {
		return "git"
	}
	return c.GitBinary
}

// CloneShallow clones a repository at depth 1 into dir. A non-empty
// branch selects that branch; otherwise the remote default is used.
func (c Client) CloneShallow(ctx context.Context, repoURL, dir, branch string) error {
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, repoURL, dir)
	return c.run(ctx, "", args...)
}

// HeadCommit returns the full SHA of the current HEAD.
func (c Client) HeadCommit(ctx context.Context, dir string) (string, error) {
	out, err := c.runOutput(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c Client) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, c.gitBinary(), args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("git %s: %s", args[0], msg)
		}
		return fmt.Errorf("git %s: %w", args[0], err)
	}
	return nil
}

func (c Client) runOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.gitBinary(), args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}

// InjectToken adds token authentication to a repository URL.
func InjectToken(rawURL, token string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	parsed.User = url.UserPassword("x-access-token", token)
	return parsed.String(), nil
}

// RedactToken removes token information from URLs for logs.
func RedactToken(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.User != nil {
		parsed.User = url.User("x-access-token")
	}
	return parsed.String()
}
