// Package store persists projects and generated documents in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Project lifecycle statuses.
const (
	StatusPending   = "pending"
	StatusAnalyzing = "analyzing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a project or document does not exist.
var ErrNotFound = errors.New("not found")

// Project is an analyzed repository.
type Project struct {
	ID           string
	GithubURL    string
	RepoName     string
	CommitSHA    string
	Status       string
	ProjectMD    string
	ErrorMessage string
	CreatedAt    time.Time
}

// Document is one generated document for a project.
type Document struct {
	ID        string
	ProjectID string
	Type      string
	Title     string
	Content   string
	CreatedAt time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database at dbPath, creating
// parent directories and the schema as needed.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	github_url TEXT NOT NULL,
	repo_name TEXT NOT NULL,
	commit_sha TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	project_md TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	doc_type TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// CreateProject inserts a new project row.
func (s *Store) CreateProject(ctx context.Context, p Project) error {
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, github_url, repo_name, commit_sha, status, project_md, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.GithubURL, p.RepoName, p.CommitSHA, p.Status, p.ProjectMD, p.ErrorMessage, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetProject fetches a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, github_url, repo_name, commit_sha, status, project_md, error_message, created_at
		 FROM projects WHERE id = ?`, id)
	var p Project
	err := row.Scan(&p.ID, &p.GithubURL, &p.RepoName, &p.CommitSHA, &p.Status, &p.ProjectMD, &p.ErrorMessage, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, github_url, repo_name, commit_sha, status, project_md, error_message, created_at
		 FROM projects ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.GithubURL, &p.RepoName, &p.CommitSHA, &p.Status, &p.ProjectMD, &p.ErrorMessage, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProjectStatus sets the status and error message of a project.
func (s *Store) UpdateProjectStatus(ctx context.Context, id, status, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, error_message = ? WHERE id = ?`,
		status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	return requireRow(res, id)
}

// SetProjectAnalysis stores the PROJECT.md output and commit SHA after
// a successful analysis.
func (s *Store) SetProjectAnalysis(ctx context.Context, id, projectMD, commitSHA string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET project_md = ?, commit_sha = ?, status = ?, error_message = '' WHERE id = ?`,
		projectMD, commitSHA, StatusCompleted, id)
	if err != nil {
		return fmt.Errorf("set project analysis: %w", err)
	}
	return requireRow(res, id)
}

// DeleteProject removes a project and its documents.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	// Cascade is on, but delete explicitly in case foreign keys are off.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("delete project documents: %w", err)
	}
	return nil
}

// CreateDocument inserts a generated document.
func (s *Store) CreateDocument(ctx context.Context, d Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, project_id, doc_type, title, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.Type, d.Title, d.Content, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetDocument fetches a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, doc_type, title, content, created_at FROM documents WHERE id = ?`, id)
	var d Document
	err := row.Scan(&d.ID, &d.ProjectID, &d.Type, &d.Title, &d.Content, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListDocuments returns all documents for a project, newest first.
func (s *Store) ListDocuments(ctx context.Context, projectID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, doc_type, title, content, created_at
		 FROM documents WHERE project_id = ? ORDER BY created_at DESC, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Type, &d.Title, &d.Content, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}
