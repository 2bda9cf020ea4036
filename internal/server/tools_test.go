package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mohammad-safakhou/stackpilot/internal/catalog"
)

type stubSearcher struct {
	hits  []catalog.SearchHit
	q     string
	limit int
}

func (s *stubSearcher) Search(_ context.Context, q string, limit int) ([]catalog.SearchHit, error) {
	s.q, s.limit = q, limit
	return s.hits, nil
}

func TestToolsList(t *testing.T) {
	cat := &stubCatalog{tools: []catalog.Tool{{ID: 1, Name: "Notion", WebsiteURL: "https://notion.so"}}}
	e := NewEcho(Handlers{Tools: &ToolsHandler{Catalog: cat}}, nil, []string{"*"}, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || len(out) != 1 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if out[0]["websiteUrl"] != "https://notion.so" {
		t.Fatalf("expected camelCase fields, got %v", out[0])
	}

	cat.err = errors.New("db down")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestToolsSearch(t *testing.T) {
	s := &stubSearcher{hits: []catalog.SearchHit{{Tool: catalog.Tool{ID: 3, Name: "Descript"}, Score: 1.5}}}
	e := NewEcho(Handlers{Tools: &ToolsHandler{Catalog: &stubCatalog{}, Searcher: s}}, nil, []string{"*"}, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tools/search?q=podcast&limit=500", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if s.q != "podcast" || s.limit != maxSearchLimit {
		t.Fatalf("unexpected search call q=%q limit=%d", s.q, s.limit)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tools/search?q=%20", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank q, got %d", rec.Code)
	}
}
