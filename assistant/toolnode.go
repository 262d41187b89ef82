package assistant

import (
	"context"

	"github.com/dshills/shopagent/graph"
	"github.com/dshills/shopagent/graph/model"
	"github.com/dshills/shopagent/graph/tool"
)

// referencesKey is the tool output key tools use to cite catalog items.
const referencesKey = "references"

// toolNode executes a specialist's pending tool calls in order.
//
// Failures become "Error: ..." tool messages so the specialist sees them on
// its next turn; they never fail the step.
type toolNode struct {
	agent string
	exec  tool.Executor
}

func (n *toolNode) Run(ctx context.Context, s State) graph.NodeResult[Update] {
	calls := s.Agent(n.agent).ToolCalls

	delta := Update{Messages: make([]model.Message, 0, len(calls))}
	names := make([]string, 0, len(calls))
	failed := 0
	for _, call := range calls {
		res := n.exec.Execute(ctx, call)
		if res.Err != nil {
			failed++
		}
		delta.Messages = append(delta.Messages, model.Message{
			Role:       model.RoleTool,
			Name:       call.Name,
			ToolCallID: call.ID,
			Content:    res.Text(),
		})
		delta.References = append(delta.References, referencesFrom(res.Output)...)
		names = append(names, call.Name)
	}

	return graph.NodeResult[Update]{
		Delta: delta,
		Meta: map[string]interface{}{
			"agent":       n.agent,
			"tools":       names,
			"tool_errors": failed,
		},
	}
}

// referencesFrom extracts item citations from a structured tool output.
func referencesFrom(output map[string]interface{}) []Reference {
	raw, ok := output[referencesKey].([]interface{})
	if !ok {
		return nil
	}
	refs := make([]Reference, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		desc, _ := m["description"].(string)
		refs = append(refs, Reference{ID: id, Description: desc})
	}
	return refs
}
