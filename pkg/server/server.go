// Package server exposes the JSON API: project registration, document
// listing and generation, and repository Q&A.
package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"repo_onboarder/internal/service/docgen"
	"repo_onboarder/internal/service/queue"
	"repo_onboarder/internal/store"
	"repo_onboarder/pkg/allowlist"
	"repo_onboarder/pkg/llm"
	"repo_onboarder/pkg/logging"
	"repo_onboarder/pkg/profile"
)

// Server handles API requests.
type Server struct {
	engine    *docgen.Engine
	store     *store.Store
	queue     *queue.Queue
	allowlist allowlist.Allowlist
	logger    *logging.Logger
}

// New creates a server instance.
func New(engine *docgen.Engine, st *store.Store, q *queue.Queue, al allowlist.Allowlist, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{engine: engine, store: st, queue: q, allowlist: al, logger: logger}
}

// Handler returns the HTTP handler with the allowlist applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /projects", s.handleCreateProject)
	mux.HandleFunc("GET /projects", s.handleListProjects)
	mux.HandleFunc("GET /projects/{id}", s.handleGetProject)
	mux.HandleFunc("GET /projects/{id}/documents", s.handleListDocuments)
	mux.HandleFunc("POST /projects/{id}/documents", s.handleGenerateDocument)
	mux.HandleFunc("POST /projects/{id}/chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return s.withAllowlist(mux)
}

func (s *Server) withAllowlist(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.allowlist.AllowsString(clientIP) {
			s.logger.Warn("request rejected: IP not in allowlist", "client_ip", clientIP, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// projectJSON is the wire form of a project.
type projectJSON struct {
	ID           string `json:"id"`
	GithubURL    string `json:"github_url"`
	RepoName     string `json:"repo_name"`
	CommitSHA    string `json:"commit_sha,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toProjectJSON(p store.Project) projectJSON {
	return projectJSON{
		ID:           p.ID,
		GithubURL:    p.GithubURL,
		RepoName:     p.RepoName,
		CommitSHA:    p.CommitSHA,
		Status:       p.Status,
		ErrorMessage: p.ErrorMessage,
		CreatedAt:    p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// documentJSON is the wire form of a document.
type documentJSON struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func toDocumentJSON(d store.Document) documentJSON {
	return documentJSON{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		Type:      d.Type,
		Title:     d.Title,
		Content:   d.Content,
		CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GithubURL string `json:"github_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request")
		return
	}
	if strings.TrimSpace(req.GithubURL) == "" {
		writeError(w, http.StatusBadRequest, "github_url is required")
		return
	}

	project, err := s.engine.CreateProject(r.Context(), req.GithubURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.queue.Enqueue(queue.Job{Kind: queue.KindAnalyze, ProjectID: project.ID}); err != nil {
		s.logger.Error("analyze enqueue failed", "project_id", project.ID, "error", err.Error())
		writeError(w, http.StatusServiceUnavailable, "analysis queue is full")
		return
	}

	s.logger.Info("project registered", "project_id", project.ID, "repo", project.RepoName)
	writeJSON(w, http.StatusAccepted, toProjectJSON(project))
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]projectJSON, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProjectJSON(project))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if _, err := s.store.GetProject(r.Context(), projectID); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	docs, err := s.store.ListDocuments(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]documentJSON, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentJSON(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleGenerateDocument(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req struct {
		Type  string `json:"type"`
		Title string `json:"title,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request")
		return
	}

	docType := profile.DocType(req.Type)
	if !docType.Valid() {
		writeError(w, http.StatusBadRequest, "unknown document type: "+req.Type)
		return
	}
	if docType == profile.DocCustom && strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "custom documents require a title")
		return
	}
	if _, err := s.store.GetProject(r.Context(), projectID); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	job := queue.Job{
		Kind:      queue.KindDocument,
		ProjectID: projectID,
		DocType:   string(docType),
		Title:     req.Title,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Error("document enqueue failed", "project_id", projectID, "error", err.Error())
		writeError(w, http.StatusServiceUnavailable, "generation queue is full")
		return
	}

	s.logger.Info("document generation queued", "project_id", projectID, "doc_type", string(docType))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "queued",
		"project_id": projectID,
		"type":       string(docType),
	})
}

// chatTurn is one prior conversation turn.
type chatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req struct {
		Question string     `json:"question"`
		History  []chatTurn `json:"history,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		role := llm.RoleUser
		if turn.Role == string(llm.RoleAssistant) {
			role = llm.RoleAssistant
		}
		history = append(history, llm.NewTextMessage(role, turn.Text))
	}

	answer, err := s.engine.Ask(r.Context(), projectID, req.Question, history)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func extractClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if trimmed := strings.TrimSpace(first); trimmed != "" {
			return trimmed
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
