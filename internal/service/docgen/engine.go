// Package docgen ties the pieces together: it runs the mapper,
// documentation and Q&A profiles against a project's workspace and
// persists the results.
package docgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"repo_onboarder/internal/service/workspace"
	"repo_onboarder/internal/store"
	"repo_onboarder/pkg/github"
	"repo_onboarder/pkg/llm"
	"repo_onboarder/pkg/logging"
	"repo_onboarder/pkg/orchestrator"
	"repo_onboarder/pkg/profile"
	"repo_onboarder/pkg/tools"
	"repo_onboarder/pkg/tools/repo"
)

// Engine runs analysis, document generation and Q&A for projects.
type Engine struct {
	store      *store.Store
	workspaces workspace.Provider
	provider   llm.Provider
	overrides  profile.Overrides
	logger     *logging.Logger
}

// New creates an engine.
func New(st *store.Store, ws workspace.Provider, provider llm.Provider, overrides profile.Overrides, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:      st,
		workspaces: ws,
		provider:   provider,
		overrides:  overrides,
		logger:     logger,
	}
}

// CreateProject registers a repository for analysis and returns the
// pending project row.
func (e *Engine) CreateProject(ctx context.Context, githubURL string) (store.Project, error) {
	owner, repoName, err := github.ParseRepoURL(githubURL)
	if err != nil {
		return store.Project{}, err
	}
	p := store.Project{
		ID:        uuid.NewString(),
		GithubURL: githubURL,
		RepoName:  owner + "/" + repoName,
		Status:    store.StatusPending,
	}
	if err := e.store.CreateProject(ctx, p); err != nil {
		return store.Project{}, err
	}
	return p, nil
}

// AnalyzeRepository clones the project's repository, runs the mapper
// profile over it and stores the resulting PROJECT.md. The project
// status reflects progress and failure.
func (e *Engine) AnalyzeRepository(ctx context.Context, projectID string) error {
	log := e.logger.StartRun("analyze", "project_id", projectID)

	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		log.EndRun(err)
		return err
	}

	if err := e.store.UpdateProjectStatus(ctx, projectID, store.StatusAnalyzing, ""); err != nil {
		log.EndRun(err)
		return err
	}

	err = e.analyze(ctx, log, project)
	if err != nil {
		_ = e.store.UpdateProjectStatus(ctx, projectID, store.StatusFailed, err.Error())
	}
	log.EndRun(err)
	return err
}

func (e *Engine) analyze(ctx context.Context, log *logging.Logger, project store.Project) error {
	done := log.Step("acquire workspace")
	sess, err := e.workspaces.Acquire(ctx, project.ID, project.GithubURL)
	done(err)
	if err != nil {
		// Mapping needs the working tree; there is nothing to fall
		// back to on a fresh project.
		return fmt.Errorf("acquire workspace: %w", err)
	}

	p := e.overrides.Apply(profile.Mapper())
	done = log.Step("run mapper", "max_iterations", p.MaxIterations)
	result, err := e.run(ctx, p, []llm.Message{llm.NewTextMessage(llm.RoleUser, p.UserPrompt)}, sess, project.ID)
	done(err)
	if err != nil {
		return fmt.Errorf("mapper run: %w", err)
	}
	if result.Outcome != orchestrator.OutcomeCompleted {
		log.Warn("mapper did not complete cleanly", "outcome", string(result.Outcome))
	}

	done = log.Step("persist analysis")
	err = e.store.SetProjectAnalysis(ctx, project.ID, result.FinalText, sess.CommitSHA)
	done(err)
	return err
}

// GenerateDocument runs the documentation profile for docType and
// persists the result. When the workspace cannot be provided the
// document is generated from the stored PROJECT.md alone.
func (e *Engine) GenerateDocument(ctx context.Context, projectID string, docType profile.DocType, customTitle string) (store.Document, error) {
	log := e.logger.StartRun("generate_document", "project_id", projectID, "doc_type", string(docType))

	doc, err := e.generateDocument(ctx, log, projectID, docType, customTitle)
	log.EndRun(err)
	return doc, err
}

func (e *Engine) generateDocument(ctx context.Context, log *logging.Logger, projectID string, docType profile.DocType, customTitle string) (store.Document, error) {
	project, err := e.requireAnalyzed(ctx, projectID)
	if err != nil {
		return store.Document{}, err
	}

	sess, contextOnly := e.acquireOrDegrade(ctx, log, project)

	p, err := profile.Doc(docType, project.ProjectMD, customTitle, contextOnly)
	if err != nil {
		return store.Document{}, err
	}
	p = e.overrides.Apply(p)

	done := log.Step("run writer", "profile", p.Name, "context_only", contextOnly)
	result, err := e.run(ctx, p, []llm.Message{llm.NewTextMessage(llm.RoleUser, p.UserPrompt)}, sess, projectID)
	done(err)
	if err != nil {
		return store.Document{}, fmt.Errorf("document run: %w", err)
	}

	title := docType.Title()
	if docType == profile.DocCustom {
		title = customTitle
	}
	doc := store.Document{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Type:      string(docType),
		Title:     title,
		Content:   result.FinalText,
	}
	done = log.Step("persist document")
	err = e.store.CreateDocument(ctx, doc)
	done(err)
	if err != nil {
		return store.Document{}, err
	}
	return doc, nil
}

// Ask answers a question about the project. history carries prior
// conversation turns; the question becomes the latest user turn. When
// the workspace cannot be provided the answer is drawn from PROJECT.md
// alone.
func (e *Engine) Ask(ctx context.Context, projectID, question string, history []llm.Message) (string, error) {
	log := e.logger.StartRun("ask", "project_id", projectID)

	answer, err := e.ask(ctx, log, projectID, question, history)
	log.EndRun(err)
	return answer, err
}

func (e *Engine) ask(ctx context.Context, log *logging.Logger, projectID, question string, history []llm.Message) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question is empty")
	}

	project, err := e.requireAnalyzed(ctx, projectID)
	if err != nil {
		return "", err
	}

	sess, contextOnly := e.acquireOrDegrade(ctx, log, project)

	p := e.overrides.Apply(profile.QA(project.ProjectMD, contextOnly))
	messages := append(append([]llm.Message{}, history...), llm.NewTextMessage(llm.RoleUser, question))

	done := log.Step("run analyst", "context_only", contextOnly, "history_turns", len(history))
	result, err := e.run(ctx, p, messages, sess, projectID)
	done(err)
	if err != nil {
		return "", fmt.Errorf("qa run: %w", err)
	}
	return result.FinalText, nil
}

func (e *Engine) requireAnalyzed(ctx context.Context, projectID string) (store.Project, error) {
	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, err
	}
	if project.Status != store.StatusCompleted || project.ProjectMD == "" {
		return store.Project{}, fmt.Errorf("project %s has not been analyzed (status %s)", projectID, project.Status)
	}
	return project, nil
}

// acquireOrDegrade tries to get a workspace session. Unavailability is
// not fatal once PROJECT.md exists; the run degrades to context-only.
func (e *Engine) acquireOrDegrade(ctx context.Context, log *logging.Logger, project store.Project) (*workspace.Session, bool) {
	sess, err := e.workspaces.Acquire(ctx, project.ID, project.GithubURL)
	if err != nil {
		log.Warn("workspace unavailable, degrading to context-only", "error", err.Error())
		return nil, true
	}
	return sess, false
}

func (e *Engine) run(ctx context.Context, p profile.Profile, messages []llm.Message, sess *workspace.Session, projectID string) (orchestrator.Result, error) {
	registry := tools.NewRegistry()
	if !p.ContextOnly {
		repo.RegisterAll(registry)
	}

	var toolCtx *tools.ToolContext
	if sess != nil {
		toolCtx = tools.NewToolContext(sess.Workspace).WithProjectID(projectID)
	} else {
		toolCtx = tools.NewToolContext(nil).WithProjectID(projectID)
	}

	loop := orchestrator.NewAgentLoop(e.provider, registry)
	return loop.Run(ctx, orchestrator.Request{
		SystemPrompt:    p.SystemPrompt,
		InitialMessages: messages,
		MaxIterations:   p.MaxIterations,
		CompactConfig:   orchestrator.DefaultCompactConfig(),
		ToolContext:     toolCtx,
	})
}
