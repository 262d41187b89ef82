// Package tool defines the tools agents can call and the registry that
// executes them.
package tool

import (
	"context"
	"encoding/json"

	"github.com/dshills/shopagent/graph/model"
)

// Tool defines the interface for executable tools that LLMs can invoke.
//
// Implementations should:
//   - Validate input parameters
//   - Respect context cancellation and timeouts
//   - Return structured output as map[string]interface{}
//   - Return an error for failures the calling agent should see
//
// A tool error is not fatal to a run: the assistant folds it into the
// conversation so the agent can react on its next turn.
type Tool interface {
	// Name returns the unique identifier for this tool. It must match the
	// name in Spec and the name the LLM uses to request the tool.
	Name() string

	// Spec describes the tool to the LLM.
	Spec() model.ToolSpec

	// Call executes the tool with the provided input and returns the result.
	// input may be nil for parameterless tools.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// TextKey is the output key holding a tool's plain-text answer.
const TextKey = "text"

// Render turns a tool output into the text appended to the conversation.
// A lone TextKey entry is returned as is; anything else is JSON encoded.
func Render(output map[string]interface{}) string {
	if len(output) == 1 {
		if text, ok := output[TextKey].(string); ok {
			return text
		}
	}
	if len(output) == 0 {
		return ""
	}
	b, err := json.Marshal(output)
	if err != nil {
		return err.Error()
	}
	return string(b)
}

// Func adapts a function to the Tool interface.
//
//	search := tool.NewFunc(model.ToolSpec{Name: "get_formatted_items_context", ...},
//	    func(ctx context.Context, in map[string]interface{}) (map[string]interface{}, error) {
//	        return catalog.Search(ctx, in["query"].(string))
//	    })
type Func struct {
	spec model.ToolSpec
	fn   func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// NewFunc creates a Tool from spec and fn.
func NewFunc(spec model.ToolSpec, fn func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)) *Func {
	return &Func{spec: spec, fn: fn}
}

// Name implements Tool.
func (f *Func) Name() string { return f.spec.Name }

// Spec implements Tool.
func (f *Func) Spec() model.ToolSpec { return f.spec }

// Call implements Tool.
func (f *Func) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.fn(ctx, input)
}
