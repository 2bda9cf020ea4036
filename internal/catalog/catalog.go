// Package catalog exposes the tool directory to the recommendation pipeline
// and the public API.
package catalog

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/stackpilot/internal/store"
)

// Tool is a catalog entry as seen by the pipeline and the API.
type Tool struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug,omitempty"`
	Name        string `json:"name"`
	Tagline     string `json:"tagline,omitempty"`
	Description string `json:"description,omitempty"`
	WebsiteURL  string `json:"websiteUrl,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
	Pricing     string `json:"pricing,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Accessor lists every tool available for recommendation.
type Accessor interface {
	ListTools(ctx context.Context) ([]Tool, error)
}

// Versioner is implemented by accessors that can cheaply tell whether the
// catalog changed since the last read.
type Versioner interface {
	CatalogVersion(ctx context.Context) (string, error)
}

type toolStore interface {
	ListTools(ctx context.Context) ([]store.ToolRecord, error)
	CatalogVersion(ctx context.Context) (string, error)
}

// StoreAccessor reads the catalog straight from Postgres.
type StoreAccessor struct {
	store toolStore
}

func NewStoreAccessor(st toolStore) *StoreAccessor {
	return &StoreAccessor{store: st}
}

func (a *StoreAccessor) ListTools(ctx context.Context) ([]Tool, error) {
	records, err := a.store.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return FromRecords(records), nil
}

func (a *StoreAccessor) CatalogVersion(ctx context.Context) (string, error) {
	return a.store.CatalogVersion(ctx)
}

// FromRecord converts a stored row into a catalog Tool.
func FromRecord(rec store.ToolRecord) Tool {
	return Tool{
		ID:          rec.ID,
		Slug:        rec.Slug,
		Name:        rec.Name,
		Tagline:     rec.Tagline,
		Description: rec.Description,
		WebsiteURL:  rec.WebsiteURL,
		LogoURL:     rec.LogoURL,
		Pricing:     rec.Pricing,
		Category:    rec.Category,
	}
}

func FromRecords(records []store.ToolRecord) []Tool {
	out := make([]Tool, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// Index maps tool ids to tools. Later duplicates never replace earlier ones.
func Index(tools []Tool) map[int64]Tool {
	idx := make(map[int64]Tool, len(tools))
	for _, t := range tools {
		if _, ok := idx[t.ID]; ok {
			continue
		}
		idx[t.ID] = t
	}
	return idx
}
