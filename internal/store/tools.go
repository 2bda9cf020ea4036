package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ToolRecord is a row of the tools catalog.
type ToolRecord struct {
	ID          int64
	Slug        string
	Name        string
	Tagline     string
	Description string
	WebsiteURL  string
	LogoURL     string
	Pricing     string
	Category    string
	UpdatedAt   time.Time
}

const toolColumns = `id, slug, name, COALESCE(tagline, ''), COALESCE(description, ''), COALESCE(website_url, ''), COALESCE(logo_url, ''), COALESCE(pricing, ''), COALESCE(category, ''), updated_at`

// ListTools returns every published tool ordered by id.
func (s *Store) ListTools(ctx context.Context) ([]ToolRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+toolColumns+` FROM tools WHERE published ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()

	var out []ToolRecord
	for rows.Next() {
		var rec ToolRecord
		if err := scanTool(rows, &rec); err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetToolBySlug returns a single published tool.
func (s *Store) GetToolBySlug(ctx context.Context, slug string) (ToolRecord, error) {
	var rec ToolRecord
	row := s.DB.QueryRowContext(ctx, `SELECT `+toolColumns+` FROM tools WHERE slug=$1 AND published`, slug)
	if err := scanTool(row, &rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ToolRecord{}, ErrNotFound
		}
		return ToolRecord{}, fmt.Errorf("get tool %s: %w", slug, err)
	}
	return rec, nil
}

// CatalogVersion changes whenever a tool is added, removed or edited. The
// catalog cache keys on it so edits from the admin app show up without
// waiting for the TTL.
func (s *Store) CatalogVersion(ctx context.Context) (string, error) {
	var (
		count   int64
		updated sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*), MAX(updated_at) FROM tools WHERE published`).Scan(&count, &updated)
	if err != nil {
		return "", fmt.Errorf("catalog version: %w", err)
	}
	var stamp int64
	if updated.Valid {
		stamp = updated.Time.UnixNano()
	}
	return fmt.Sprintf("%d-%d", count, stamp), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTool(row rowScanner, rec *ToolRecord) error {
	return row.Scan(&rec.ID, &rec.Slug, &rec.Name, &rec.Tagline, &rec.Description, &rec.WebsiteURL, &rec.LogoURL, &rec.Pricing, &rec.Category, &rec.UpdatedAt)
}
