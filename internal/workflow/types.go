// Package workflow turns a natural-language request into a multi-step tool
// workflow grounded against the catalog.
package workflow

import (
	"encoding/json"

	"github.com/mohammad-safakhou/stackpilot/internal/catalog"
)

// ToolRef is a normalised tool reference read from model output.
type ToolRef struct {
	ID              int64
	StepDescription string
}

// EnrichedTool is a catalog tool plus the role it plays in one step.
type EnrichedTool struct {
	catalog.Tool
	StepDescription string `json:"stepDescription"`
}

type Step struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Tools       []EnrichedTool `json:"tools"`
}

// EnrichedWorkflow only ever references tools that were present in the
// catalog it was enriched against.
type EnrichedWorkflow struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Steps       []Step `json:"steps"`
}

// Result is what gets persisted: the workflow plus its deduplicated tools in
// first-appearance order.
type Result struct {
	Workflow EnrichedWorkflow `json:"workflow"`
	Tools    []catalog.Tool   `json:"tools"`
	// Dropped counts references that did not resolve to a catalog tool.
	Dropped int `json:"-"`
}

// Outcome is the caller-facing result of one pipeline run.
type Outcome struct {
	WorkflowID *string           `json:"workflowId"`
	Saved      bool              `json:"saved"`
	Workflow   *EnrichedWorkflow `json:"workflow,omitempty"`
	Tools      []catalog.Tool    `json:"tools,omitempty"`
	Error      string            `json:"error,omitempty"`
	// Failed is set when the model output could not be used at all.
	Failed bool `json:"-"`
}

// MarshalJSON emits "tools" whenever a workflow is present, as an empty list
// when no tool survived, and omits it on the failure shape.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type plain Outcome
	var tools *[]catalog.Tool
	if o.Workflow != nil {
		list := o.Tools
		if list == nil {
			list = []catalog.Tool{}
		}
		tools = &list
	}
	return json.Marshal(struct {
		plain
		Tools *[]catalog.Tool `json:"tools,omitempty"`
	}{plain(o), tools})
}
