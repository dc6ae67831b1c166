package tools

import "repo_onboarder/pkg/repofs"

// ToolContext provides execution context for tools. A context-only
// invocation carries no workspace; repository tools report that as an
// error result instead of failing the loop.
type ToolContext struct {
	// Workspace is the sandboxed accessor for the cloned repository.
	// Nil when the repository working tree is unavailable.
	Workspace *repofs.Accessor

	// ProjectID identifies the analyzed project, for logging.
	ProjectID string
}

// NewToolContext creates a tool context bound to a repository workspace.
func NewToolContext(workspace *repofs.Accessor) *ToolContext {
	return &ToolContext{Workspace: workspace}
}

// WithProjectID sets the project ID and returns the context for chaining.
func (c *ToolContext) WithProjectID(id string) *ToolContext {
	c.ProjectID = id
	return c
}

// HasWorkspace reports whether a repository working tree is attached.
func (c *ToolContext) HasWorkspace() bool {
	return c != nil && c.Workspace != nil
}

type toolError string

func (e toolError) Error() string { return string(e) }

// ErrNoWorkspace is reported when a repository tool runs without a
// working tree attached.
const ErrNoWorkspace toolError = "repository workspace not available"
