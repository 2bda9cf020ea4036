package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/stackpilot/internal/catalog"
	"github.com/mohammad-safakhou/stackpilot/internal/store"
	"github.com/mohammad-safakhou/stackpilot/internal/workflow"
	"github.com/mohammad-safakhou/stackpilot/models"
)

type stubCatalog struct {
	tools []catalog.Tool
	err   error
	calls int
}

func (s *stubCatalog) ListTools(context.Context) ([]catalog.Tool, error) {
	s.calls++
	return s.tools, s.err
}

type stubLLM struct {
	out   string
	err   error
	calls int
}

func (s *stubLLM) Generate(context.Context, string, models.GenerateOptions) (string, error) {
	s.calls++
	return s.out, s.err
}

type stubPersister struct {
	id    string
	err   error
	calls int
}

func (s *stubPersister) InsertWorkflow(context.Context, string, []byte) (string, error) {
	s.calls++
	return s.id, s.err
}

func setupStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &store.Store{DB: db}, mock
}

type pipeline struct {
	catalog   *stubCatalog
	llm       *stubLLM
	persister *stubPersister
}

func newPipeline(out string) pipeline {
	return pipeline{
		catalog:   &stubCatalog{tools: []catalog.Tool{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}},
		llm:       &stubLLM{out: out},
		persister: &stubPersister{id: "9b2f3c1e-8a7d-4f6e-9c21-0d5e4b3a2f10"},
	}
}

func (p pipeline) serve(t *testing.T, st *store.Store, body string) *httptest.ResponseRecorder {
	t.Helper()
	svc := workflow.NewService(p.catalog, p.llm, p.persister, workflow.Options{}, nil, nil)
	e := NewEcho(Handlers{Workflows: &WorkflowsHandler{Generator: svc, Store: st}}, nil, []string{"*"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/workflows/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const threeRefOutput = `{"workflow":{"title":"Ship","description":"d","steps":[{"title":"s","description":"x","tools":[1,2,99]}]}}`

func TestGenerateWorkflowSaved(t *testing.T) {
	p := newPipeline(threeRefOutput)
	rec := p.serve(t, nil, `{"query":"launch a newsletter"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		WorkflowID *string                   `json:"workflowId"`
		Saved      bool                      `json:"saved"`
		Workflow   workflow.EnrichedWorkflow `json:"workflow"`
		Tools      []catalog.Tool            `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Saved || body.WorkflowID == nil || *body.WorkflowID != p.persister.id {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if len(body.Workflow.Steps) != 1 || len(body.Workflow.Steps[0].Tools) != 2 || len(body.Tools) != 2 {
		t.Fatalf("expected tools 1 and 2 only, got %s", rec.Body.String())
	}
}

func TestGenerateWorkflowMalformedOutput(t *testing.T) {
	p := newPipeline("not json at all")
	rec := p.serve(t, nil, `{"query":"anything"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"workflowId":null,"saved":false,"error":"Failed to generate workflow"}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestGenerateWorkflowPersistFailure(t *testing.T) {
	p := newPipeline(threeRefOutput)
	p.persister.err = errors.New("connection reset")
	rec := p.serve(t, nil, `{"query":"anything"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`"workflowId":null`, `"saved":false`, `"title":"Ship"`, `"tools":[`} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %s: %s", want, body)
		}
	}
}

func TestGenerateWorkflowEmptyQuery(t *testing.T) {
	for _, payload := range []string{`{"query":""}`, `{"query":"   "}`, `{}`, `not json`} {
		p := newPipeline(threeRefOutput)
		rec := p.serve(t, nil, payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", payload, rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"query is required"}` {
			t.Fatalf("%s: unexpected body %s", payload, got)
		}
		if p.catalog.calls+p.llm.calls+p.persister.calls != 0 {
			t.Fatalf("%s: collaborators must not be called", payload)
		}
	}
}

func TestGenerateWorkflowBackendErrors(t *testing.T) {
	p := newPipeline("")
	p.llm.err = models.StatusError{Provider: "gemini", Code: 503, Body: "secret upstream detail"}
	rec := p.serve(t, nil, `{"query":"q"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret upstream detail") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}

	p = newPipeline(threeRefOutput)
	p.catalog.err = errors.New("db down")
	rec = p.serve(t, nil, `{"query":"q"}`)
	if rec.Code != http.StatusInternalServerError || p.llm.calls != 0 {
		t.Fatalf("expected 500 without generation, got %d", rec.Code)
	}
}

func TestGetWorkflow(t *testing.T) {
	st, mock := setupStore(t)
	id := "9b2f3c1e-8a7d-4f6e-9c21-0d5e4b3a2f10"
	payload := `{"workflow":{"title":"Ship","description":"","steps":[{"title":"s","description":"","tools":[{"id":1,"name":"A","stepDescription":"x"}]}]},"tools":[{"id":1,"name":"A"}]}`
	created := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, query, COALESCE(payload->'workflow'->>'title', ''), payload, created_at FROM workflows WHERE id=$1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "query", "title", "payload", "created_at"}).AddRow(id, "ship it", "Ship", []byte(payload), created))

	e := NewEcho(Handlers{Workflows: &WorkflowsHandler{Store: st}}, nil, []string{"*"}, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp WorkflowResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID != id || resp.Query != "ship it" || resp.Workflow.Title != "Ship" || len(resp.Tools) != 1 || !resp.CreatedAt.Equal(created) {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Workflow.Steps[0].Tools[0].StepDescription != "x" {
		t.Fatalf("step tools not decoded: %+v", resp.Workflow.Steps)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	st, mock := setupStore(t)
	id := "9b2f3c1e-8a7d-4f6e-9c21-0d5e4b3a2f10"
	mock.ExpectQuery("FROM workflows WHERE id").WithArgs(id).WillReturnRows(sqlmock.NewRows([]string{"id", "query", "title", "payload", "created_at"}))

	e := NewEcho(Handlers{Workflows: &WorkflowsHandler{Store: st}}, nil, []string{"*"}, nil)
	for _, path := range []string{"/api/workflows/" + id, "/api/workflows/not-a-uuid"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListWorkflows(t *testing.T) {
	st, mock := setupStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("FROM workflows ORDER BY created_at DESC LIMIT").WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "query", "title", "created_at"}).
			AddRow("a", "q1", "T1", now).
			AddRow("b", "q2", "", now))

	e := NewEcho(Handlers{Workflows: &WorkflowsHandler{Store: st}}, nil, []string{"*"}, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []WorkflowSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || len(out) != 2 || out[0].Title != "T1" {
		t.Fatalf("unexpected list %s (%v)", rec.Body.String(), err)
	}
}
