// Package graph provides a graph-structured workflow engine: nodes produce
// partial state updates, a reducer merges them, declared routes pick the next
// node, and every super-step is checkpointed per thread.
package graph

import (
	"fmt"
	"slices"
)

// END is the terminal marker. Routing into END finishes the run.
const END = "__end__"

// Router inspects post-merge state and returns the name of the next node
// (or END). Routers must be pure: the engine re-evaluates them when resuming
// a thread from its checkpoint.
//
// Common patterns:
//   - Iteration cap: if s.Iteration > 3 { return END }
//   - Pending work: if len(s.ToolCalls) > 0 { return "tools" }
//
// Type parameter S is the state type to evaluate.
type Router[S any] func(state S) string

// Edge is the single outgoing transition declared for a node.
//
// An edge is either:
//   - Unconditional: To names the successor (Router == nil).
//   - Conditional: Router picks one of Targets at run time.
type Edge[S any] struct {
	// From is the source node name.
	From string

	// To is the unconditional successor. Ignored when Router is set.
	To string

	// Router selects the successor for conditional edges.
	Router Router[S]

	// Targets is the closed set of names Router may return.
	Targets []string
}

// Conditional reports whether the edge is evaluated by a router.
func (e Edge[S]) Conditional() bool {
	return e.Router != nil
}

// successors returns every name this edge can lead to.
func (e Edge[S]) successors() []string {
	if e.Conditional() {
		return e.Targets
	}
	return []string{e.To}
}

// next evaluates the edge against state. A router answer outside of the
// declared target set is a routing defect.
func (e Edge[S]) next(state S) (string, error) {
	if !e.Conditional() {
		return e.To, nil
	}
	to := e.Router(state)
	if !slices.Contains(e.Targets, to) {
		return "", &EngineError{
			Message: fmt.Sprintf("router of %s returned undeclared target %q", e.From, to),
			Code:    CodeRoutingError,
			NodeID:  e.From,
		}
	}
	return to, nil
}
