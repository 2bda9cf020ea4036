package workflow

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/stackpilot/internal/catalog"
)

const justificationLimit = 160

var (
	justificationKeys = []string{"stepDescription", "justification", "reason"}
	idKeys            = []string{"id", "toolId"}
)

// Enrich validates model output against tools. Unknown references are
// dropped, steps left without any tool are dropped, and a missing workflow
// or steps field yields an empty workflow rather than an error.
func Enrich(doc json.RawMessage, tools []catalog.Tool) Result {
	res := Result{
		Workflow: EnrichedWorkflow{Steps: []Step{}},
		Tools:    []catalog.Tool{},
	}
	wf := locateWorkflow(doc)
	if wf == nil {
		return res
	}
	res.Workflow.Title = stringField(wf, "title")
	res.Workflow.Description = stringField(wf, "description")

	var rawSteps []json.RawMessage
	if err := json.Unmarshal(wf["steps"], &rawSteps); err != nil {
		return res
	}

	index := catalog.Index(tools)
	seen := make(map[int64]struct{})
	for _, rs := range rawSteps {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(rs, &fields); err != nil || fields == nil {
			continue
		}
		refs, invalid := parseRefs(fields["tools"])
		res.Dropped += invalid

		step := Step{
			Title:       stringField(fields, "title"),
			Description: stringField(fields, "description"),
			Tools:       make([]EnrichedTool, 0, len(refs)),
		}
		for _, ref := range refs {
			tool, ok := index[ref.ID]
			if !ok {
				res.Dropped++
				continue
			}
			step.Tools = append(step.Tools, EnrichedTool{Tool: tool, StepDescription: justify(ref.StepDescription, tool)})
			if _, dup := seen[tool.ID]; !dup {
				seen[tool.ID] = struct{}{}
				res.Tools = append(res.Tools, tool)
			}
		}
		if len(step.Tools) == 0 {
			continue
		}
		res.Workflow.Steps = append(res.Workflow.Steps, step)
	}
	return res
}

// locateWorkflow returns the workflow object, accepting both the wrapped
// {"workflow": {...}} form and a bare workflow with top-level steps.
func locateWorkflow(doc json.RawMessage) map[string]json.RawMessage {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil || top == nil {
		return nil
	}
	if raw, ok := top["workflow"]; ok {
		var wf map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wf); err == nil && wf != nil {
			return wf
		}
	}
	if _, ok := top["steps"]; ok {
		return top
	}
	return nil
}

// parseRefs normalises a step's tool references and collapses repeated ids.
// The first occurrence keeps its position; a later non-empty justification
// fills an empty one. invalid counts entries without a usable id.
func parseRefs(raw json.RawMessage) (refs []ToolRef, invalid int) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, 0
	}
	var items []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 1
		}
	} else {
		items = []json.RawMessage{raw}
	}

	pos := make(map[int64]int, len(items))
	for _, item := range items {
		ref, ok := parseRef(item)
		if !ok {
			invalid++
			continue
		}
		if i, dup := pos[ref.ID]; dup {
			if strings.TrimSpace(refs[i].StepDescription) == "" {
				refs[i].StepDescription = ref.StepDescription
			}
			continue
		}
		pos[ref.ID] = len(refs)
		refs = append(refs, ref)
	}
	return refs, invalid
}

func parseRef(raw json.RawMessage) (ToolRef, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ToolRef{}, false
	}
	if raw[0] != '{' {
		id, ok := parseID(raw)
		return ToolRef{ID: id}, ok
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ToolRef{}, false
	}
	var ref ToolRef
	found := false
	for _, k := range idKeys {
		if v, ok := fields[k]; ok {
			ref.ID, found = parseID(v)
			break
		}
	}
	if !found {
		return ToolRef{}, false
	}
	for _, k := range justificationKeys {
		if s := stringField(fields, k); strings.TrimSpace(s) != "" {
			ref.StepDescription = s
			break
		}
	}
	return ref, true
}

// parseID accepts a JSON number or a numeric string. Non-integral numbers
// are rejected.
func parseID(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(text)
	}
	if id, err := strconv.ParseInt(text, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func stringField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func justify(text string, tool catalog.Tool) string {
	if strings.TrimSpace(text) != "" {
		return text
	}
	if strings.TrimSpace(tool.Tagline) != "" {
		return tool.Tagline
	}
	return truncateRunes(tool.Description, justificationLimit)
}
