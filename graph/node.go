package graph

import "context"

// Node is one step of an agent graph: it reads a state S and proposes a
// sparse update U, which the engine merges with the graph's Reducer.
//
// Nodes do not pick their successor. Transitions live on the graph
// (AddEdge, AddConditionalEdges) and are evaluated on the merged state.
type Node[S, U any] interface {
	// Run receives a private copy of the state; mutating it is harmless.
	Run(ctx context.Context, state S) NodeResult[U]
}

// NodeResult is what a node hands back to the engine.
type NodeResult[U any] struct {
	Delta U

	// Meta is copied onto the step event (token usage, tool names, next
	// agent).
	Meta map[string]interface{}

	// Err fails the run. The delta is discarded and nothing is merged.
	Err error
}

// NodeFunc adapts a plain function to Node.
//
//	greet := graph.NodeFunc[State, Update](func(ctx context.Context, s State) graph.NodeResult[Update] {
//	    return graph.NodeResult[Update]{Delta: Update{Answer: "hello " + s.UserID}}
//	})
type NodeFunc[S, U any] func(ctx context.Context, state S) NodeResult[U]

// Run calls f.
func (f NodeFunc[S, U]) Run(ctx context.Context, state S) NodeResult[U] {
	return f(ctx, state)
}
