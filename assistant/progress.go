package assistant

import (
	"fmt"
	"maps"
	"strings"

	"github.com/dshills/shopagent/graph/model"
)

// Tool names with dedicated progress text.
const (
	ItemsSearchTool   = "get_formatted_items_context"
	ReviewsSearchTool = "get_formatted_reviews_context"
)

// ToolProgress renders the progress text of one tool call.
type ToolProgress func(call model.ToolCall) string

// Progress maps step boundaries to the text shown to the customer. The text
// depends on the node being routed into; an empty string means nothing is
// shown for that step.
type Progress struct {
	tools map[string]ToolProgress
}

// DefaultProgress returns the progress table for the catalog tools.
func DefaultProgress() *Progress {
	return &Progress{tools: map[string]ToolProgress{
		ItemsSearchTool: func(c model.ToolCall) string {
			query, _ := c.Input["query"].(string)
			return fmt.Sprintf("Looking for items: %s.", query)
		},
		ReviewsSearchTool: func(model.ToolCall) string {
			return "Fetching user reviews..."
		},
	}}
}

// WithTool returns a copy of the table with text for another tool.
func (p *Progress) WithTool(name string, render ToolProgress) *Progress {
	tools := maps.Clone(p.tools)
	tools[name] = render
	return &Progress{tools: tools}
}

// Message returns the text for routing into next with state s.
func (p *Progress) Message(next string, s State) string {
	switch {
	case next == Coordinator:
		return "Analysing the question..."
	case IsSpecialist(next):
		return "Planning..."
	}
	for _, agent := range Specialists {
		if next == ToolNode(agent) {
			return p.toolCalls(s.Agent(agent).ToolCalls)
		}
	}
	return ""
}

func (p *Progress) toolCalls(calls []model.ToolCall) string {
	parts := make([]string, 0, len(calls))
	for _, c := range calls {
		if render, ok := p.tools[c.Name]; ok {
			parts = append(parts, render(c))
			continue
		}
		parts = append(parts, fmt.Sprintf("Unknown tool: %s.", c.Name))
	}
	return strings.Join(parts, " ")
}
