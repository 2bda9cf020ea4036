package server

import (
	"time"

	"github.com/mohammad-safakhou/stackpilot/internal/catalog"
	"github.com/mohammad-safakhou/stackpilot/internal/workflow"
)

// HTTPError is the error envelope returned by every endpoint.
type HTTPError struct {
	Error string `json:"error"`
}

// GenerateWorkflowRequest is the body of POST /api/workflows/generate.
type GenerateWorkflowRequest struct {
	Query string `json:"query"`
}

// WorkflowResponse is a stored workflow.
type WorkflowResponse struct {
	ID        string                    `json:"id"`
	Query     string                    `json:"query"`
	Workflow  workflow.EnrichedWorkflow `json:"workflow"`
	Tools     []catalog.Tool            `json:"tools"`
	CreatedAt time.Time                 `json:"createdAt"`
}

// WorkflowSummary is one entry of the recent workflows listing.
type WorkflowSummary struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostResponse is an imported blog post.
type PostResponse struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary"`
	Author      string    `json:"author,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ScrapeRequest is the body of POST /api/admin/scrape.
type ScrapeRequest struct {
	URL string `json:"url"`
}
