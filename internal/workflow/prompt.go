package workflow

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mohammad-safakhou/stackpilot/internal/catalog"
)

const (
	promptDescriptionLimit = 280
	minSteps               = 3
	maxSteps               = 5
)

const outputSchema = `{
  "workflow": {
    "title": "short workflow title",
    "description": "one or two sentences on what the workflow achieves",
    "steps": [
      {
        "title": "step title",
        "description": "what happens in this step",
        "tools": [
          {"id": 12, "stepDescription": "why and how this tool is used in this step"}
        ]
      }
    ]
  }
}`

// BuildPrompt renders the generation prompt for query over tools. The catalog
// listing is ordered by id so equal inputs always produce the same prompt.
func BuildPrompt(query string, tools []catalog.Tool) string {
	sorted := make([]catalog.Tool, len(tools))
	copy(sorted, tools)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var b strings.Builder
	b.WriteString("You are an expert consultant who designs practical workflows out of AI tools.\n")
	b.WriteString("Recommend a workflow that solves the user's problem using ONLY the tools listed in the catalog below.\n\n")

	b.WriteString("CATALOG (format: [id] name | tagline | description):\n")
	for _, t := range sorted {
		fmt.Fprintf(&b, "[%d] %s | %s | %s\n", t.ID, oneLine(t.Name), oneLine(t.Tagline), oneLine(truncateRunes(t.Description, promptDescriptionLimit)))
	}

	b.WriteString("\nUSER REQUEST:\n")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\nREQUIRED OUTPUT FORMAT:\n")
	b.WriteString(outputSchema)
	b.WriteString("\n\nRULES:\n")
	b.WriteString("- Use only tool ids that appear in the catalog above. Never invent tools or ids.\n")
	fmt.Fprintf(&b, "- Produce between %d and %d steps, in the order the user should perform them.\n", minSteps, maxSteps)
	b.WriteString("- Every step must include at least one tool.\n")
	b.WriteString("- Prefer the tools that fit the request best; do not list a tool that adds nothing to its step.\n")
	b.WriteString("- stepDescription explains the tool's role in that specific step.\n")
	b.WriteString("- Respond with the JSON object only, without markdown or commentary.\n")
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most n runes, marking the cut with an ellipsis.
func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
