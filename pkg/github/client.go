// Package github is a small GitHub REST client used for repository
// metadata lookups before cloning.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.github.com"

// Client talks to the GitHub API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Repo holds repository metadata.
type Repo struct {
	DefaultBranch string
	CloneURL      string
}

// NewClient creates a GitHub API client. An empty baseURL selects the
// public API.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ParseRepoURL extracts owner and repository name from an HTTPS or SSH
// GitHub URL.
func ParseRepoURL(rawURL string) (owner, repo string, err error) {
	s := strings.TrimSpace(rawURL)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	if strings.HasPrefix(s, "git@") {
		// git@github.com:owner/repo
		_, after, found := strings.Cut(s, ":")
		if !found {
			return "", "", fmt.Errorf("invalid repository URL: %s", rawURL)
		}
		s = after
	} else {
		parsed, parseErr := url.Parse(s)
		if parseErr != nil {
			return "", "", fmt.Errorf("invalid repository URL: %s", rawURL)
		}
		s = strings.TrimPrefix(parsed.Path, "/")
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository URL: %s", rawURL)
	}
	return parts[0], parts[1], nil
}

// GetRepo retrieves repository metadata.
func (c *Client) GetRepo(ctx context.Context, owner, repo string) (Repo, error) {
	var resp struct {
		DefaultBranch string `json:"default_branch"`
		CloneURL      string `json:"clone_url"`
	}
	requestPath := fmt.Sprintf("/repos/%s/%s", owner, repo)
	if err := c.doRequest(ctx, requestPath, &resp); err != nil {
		return Repo{}, err
	}
	return Repo{DefaultBranch: resp.DefaultBranch, CloneURL: resp.CloneURL}, nil
}

// DefaultBranch returns the repository's default branch, falling back
// to "main" when the API does not report one.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, err := c.GetRepo(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	if r.DefaultBranch == "" {
		return "main", nil
	}
	return r.DefaultBranch, nil
}

func (c *Client) doRequest(ctx context.Context, requestPath string, out any) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	base.Path = path.Join(base.Path, requestPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github api error: %s", string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
