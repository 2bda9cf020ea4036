package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostRecord is a blog post imported from an RSS feed.
type PostRecord struct {
	ID          string
	Slug        string
	Title       string
	Link        string
	Summary     string
	Author      string
	Source      string
	PublishedAt time.Time
	CreatedAt   time.Time
}

// InsertPostIfNew stores an imported post. It reports false when a post with
// the same link already exists, so re-importing a feed is a no-op.
func (s *Store) InsertPostIfNew(ctx context.Context, rec PostRecord) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
INSERT INTO posts (slug, title, link, summary, author, source, published_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (link) DO NOTHING`,
		rec.Slug, rec.Title, rec.Link, rec.Summary, rec.Author, rec.Source, rec.PublishedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert post %s: %w", rec.Link, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListPosts returns posts newest first.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]PostRecord, error) {
	limit = clampLimit(limit, 20, 100)
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, slug, title, link, summary, author, source, published_at, created_at
FROM posts
ORDER BY published_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []PostRecord
	for rows.Next() {
		var (
			rec    PostRecord
			author sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Slug, &rec.Title, &rec.Link, &rec.Summary, &author, &rec.Source, &rec.PublishedAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		rec.Author = author.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
