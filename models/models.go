package models

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a backend answers successfully but with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Image is an inline image attached to a generation request.
type Image struct {
	MIMEType string
	Data     []byte
}

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	// Grounding lets the backend consult web search before answering.
	Grounding bool
	// JSON asks the backend for a JSON-only response when it supports it.
	JSON bool
	// Model overrides the provider's default model for this call.
	Model  string
	Images []Image
}

// StatusError reports a non-2xx answer from a generation backend.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.Code, e.Body)
	}
	return fmt.Sprintf("%s API returned status %d", e.Provider, e.Code)
}
