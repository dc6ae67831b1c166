package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"repo_onboarder/internal/service/docgen"
	"repo_onboarder/internal/service/queue"
	"repo_onboarder/internal/service/workspace"
	"repo_onboarder/internal/store"
	"repo_onboarder/pkg/allowlist"
	"repo_onboarder/pkg/llm"
	"repo_onboarder/pkg/logging"
	"repo_onboarder/pkg/profile"
)

type fakeProvider struct {
	answer string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Call(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	return llm.CompletionResponse{
		Role:       llm.RoleAssistant,
		Content:    []llm.ContentBlock{{Type: llm.ContentTypeText, Text: p.answer}},
		StopReason: llm.StopReasonEndTurn,
	}, nil
}

type noWorkspaces struct{}

func (noWorkspaces) Acquire(context.Context, string, string) (*workspace.Session, error) {
	return nil, workspace.ErrUnavailable
}

func (noWorkspaces) Release(string, string) {}

func newTestServer(t *testing.T, rules []string) (*Server, *store.Store, *queue.Queue) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	al, err := allowlist.New(rules)
	if err != nil {
		t.Fatalf("allowlist: %v", err)
	}

	engine := docgen.New(st, noWorkspaces{}, &fakeProvider{answer: "The store uses SQLite."}, profile.Overrides{}, logging.Default())
	q := queue.New(1, func(context.Context, queue.Job) error { return nil })
	return New(engine, st, q, al, logging.Default()), st, q
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:5000"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAllowlistBlocks(t *testing.T) {
	s, _, _ := newTestServer(t, []string{"10.0.0.0/8"})
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAllowlistForwardedFor(t *testing.T) {
	s, _, _ := newTestServer(t, []string{"10.0.0.0/8"})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	req.Header.Set("X-Forwarded-For", "10.1.2.3, 192.0.2.1")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for forwarded allowlisted IP", rec.Code)
	}
}

func TestCreateProject(t *testing.T) {
	s, st, _ := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/projects", `{"github_url": "https://github.com/acme/widgets"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"repo_name":"acme/widgets"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	projects, err := st.ListProjects(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 {
		t.Errorf("got %d projects, want 1", len(projects))
	}
}

func TestCreateProjectValidation(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/projects", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing url: status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/projects", `{"github_url": "junk"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad url: status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/projects", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", rec.Code)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := doRequest(t, s, http.MethodGet, "/projects/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListDocuments(t *testing.T) {
	s, st, _ := newTestServer(t, nil)
	ctx := context.Background()

	p := store.Project{ID: "p1", GithubURL: "u", RepoName: "r"}
	if err := st.CreateProject(ctx, p); err != nil {
		t.Fatal(err)
	}
	d := store.Document{ID: "d1", ProjectID: "p1", Type: "overview", Title: "Overview", Content: "# Overview"}
	if err := st.CreateDocument(ctx, d); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodGet, "/projects/p1/documents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"type":"overview"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/projects/missing/documents", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGenerateDocument(t *testing.T) {
	s, st, _ := newTestServer(t, nil)

	p := store.Project{ID: "p1", GithubURL: "u", RepoName: "r"}
	if err := st.CreateProject(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodPost, "/projects/p1/documents", `{"type": "architecture"}`)
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPost, "/projects/p1/documents", `{"type": "poetry"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type: status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/projects/p1/documents", `{"type": "custom"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("custom without title: status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/projects/missing/documents", `{"type": "overview"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing project: status = %d", rec.Code)
	}
}

func TestChat(t *testing.T) {
	s, st, _ := newTestServer(t, nil)
	ctx := context.Background()

	p := store.Project{ID: "p1", GithubURL: "https://github.com/acme/widgets", RepoName: "acme/widgets"}
	if err := st.CreateProject(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := st.SetProjectAnalysis(ctx, "p1", "# Project\n\nWidgets.", "abc"); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodPost, "/projects/p1/chat", `{"question": "What database does it use?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "SQLite") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPost, "/projects/p1/chat", `{"question": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty question: status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/projects/missing/chat", `{"question": "hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing project: status = %d", rec.Code)
	}
}
