package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// WorkflowRecord is a persisted AI-generated workflow. The payload is opaque
// to the store; it holds the enriched workflow and its flat tool list.
type WorkflowRecord struct {
	ID        string
	Query     string
	Title     string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// InsertWorkflow stores a generated workflow and returns the id Postgres
// assigned to it. Rows are never updated afterwards.
func (s *Store) InsertWorkflow(ctx context.Context, query string, payload []byte) (string, error) {
	if !json.Valid(payload) {
		return "", fmt.Errorf("insert workflow: payload is not valid JSON")
	}
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO workflows (query, payload) VALUES ($1, $2) RETURNING id`,
		query, payload,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert workflow: %w", err)
	}
	return id, nil
}

// GetWorkflow loads a workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, id string) (WorkflowRecord, error) {
	var (
		rec     WorkflowRecord
		payload []byte
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, query, COALESCE(payload->'workflow'->>'title', ''), payload, created_at FROM workflows WHERE id=$1`,
		id,
	).Scan(&rec.ID, &rec.Query, &rec.Title, &payload, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WorkflowRecord{}, ErrNotFound
		}
		return WorkflowRecord{}, fmt.Errorf("get workflow %s: %w", id, err)
	}
	rec.Payload = payload
	return rec, nil
}

// ListRecentWorkflows returns the newest workflows without their payloads.
func (s *Store) ListRecentWorkflows(ctx context.Context, limit int) ([]WorkflowRecord, error) {
	limit = clampLimit(limit, 20, 100)
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, query, COALESCE(payload->'workflow'->>'title', ''), created_at FROM workflows ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []WorkflowRecord
	for rows.Next() {
		var rec WorkflowRecord
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Title, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
