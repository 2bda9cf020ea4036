package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/stackpilot/internal/catalog"
	"github.com/mohammad-safakhou/stackpilot/internal/store"
)

// Persister stores an enriched workflow and returns its new id.
type Persister interface {
	InsertWorkflow(ctx context.Context, query string, payload []byte) (string, error)
}

var _ Persister = (*store.Store)(nil)

// EncodeResult renders the payload written by a Persister.
func EncodeResult(res Result) ([]byte, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode workflow: %w", err)
	}
	return payload, nil
}

// DecodeResult reads a payload previously produced by EncodeResult.
func DecodeResult(payload []byte) (Result, error) {
	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return Result{}, fmt.Errorf("decode workflow: %w", err)
	}
	if res.Workflow.Steps == nil {
		res.Workflow.Steps = []Step{}
	}
	if res.Tools == nil {
		res.Tools = []catalog.Tool{}
	}
	return res, nil
}
