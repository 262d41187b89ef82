package graph

import (
	"errors"
	"fmt"
)

// Graph collects nodes and transitions before validation.
//
// Builder methods never fail on their own; problems are recorded and reported
// together by Compile, so a whole graph can be declared in one chain:
//
//	g := graph.NewGraph[State, Update]().
//	    AddNode("plan", planner).
//	    AddNode("act", actor).
//	    SetEntry("plan").
//	    AddEdge("act", "plan").
//	    AddConditionalEdges("plan", routePlan, "act", graph.END)
//	compiled, err := g.Compile()
//
// A Graph is not safe for concurrent use; the Compiled result is.
type Graph[S, U any] struct {
	nodes map[string]nodeSpec[S, U]
	order []string
	edges map[string]Edge[S]
	entry string
	errs  []error
}

type nodeSpec[S, U any] struct {
	node   Node[S, U]
	policy *NodePolicy
}

// NewGraph returns an empty graph definition.
func NewGraph[S, U any]() *Graph[S, U] {
	return &Graph[S, U]{
		nodes: make(map[string]nodeSpec[S, U]),
		edges: make(map[string]Edge[S]),
	}
}

// AddNode registers a node under a unique name.
func (g *Graph[S, U]) AddNode(name string, node Node[S, U]) *Graph[S, U] {
	return g.addNode(name, node, nil)
}

// AddNodeWithPolicy registers a node with an execution policy (timeout).
func (g *Graph[S, U]) AddNodeWithPolicy(name string, node Node[S, U], policy NodePolicy) *Graph[S, U] {
	return g.addNode(name, node, &policy)
}

func (g *Graph[S, U]) addNode(name string, node Node[S, U], policy *NodePolicy) *Graph[S, U] {
	switch {
	case name == "":
		g.fail("node name cannot be empty")
	case name == END:
		g.fail("node name %q is reserved", END)
	case node == nil:
		g.fail("node %q is nil", name)
	default:
		if _, dup := g.nodes[name]; dup {
			g.fail("duplicate node name %q", name)
			return g
		}
		g.nodes[name] = nodeSpec[S, U]{node: node, policy: policy}
		g.order = append(g.order, name)
	}
	return g
}

// SetEntry declares the node every run starts at.
func (g *Graph[S, U]) SetEntry(name string) *Graph[S, U] {
	if g.entry != "" {
		g.fail("entry already set to %q", g.entry)
		return g
	}
	g.entry = name
	return g
}

// AddEdge declares an unconditional transition from one node to another (or END).
func (g *Graph[S, U]) AddEdge(from, to string) *Graph[S, U] {
	if to == "" {
		g.fail("edge from %q has an empty target", from)
		return g
	}
	return g.addEdge(Edge[S]{From: from, To: to})
}

// AddConditionalEdges declares a router for a node together with the closed
// set of names it may return.
func (g *Graph[S, U]) AddConditionalEdges(from string, router Router[S], targets ...string) *Graph[S, U] {
	if router == nil {
		g.fail("router for %q is nil", from)
		return g
	}
	if len(targets) == 0 {
		g.fail("router for %q declares no targets", from)
		return g
	}
	return g.addEdge(Edge[S]{From: from, Router: router, Targets: append([]string(nil), targets...)})
}

func (g *Graph[S, U]) addEdge(e Edge[S]) *Graph[S, U] {
	if _, dup := g.edges[e.From]; dup {
		g.fail("node %q already has an outgoing transition", e.From)
		return g
	}
	g.edges[e.From] = e
	return g
}

func (g *Graph[S, U]) fail(format string, args ...interface{}) {
	g.errs = append(g.errs, fmt.Errorf(format, args...))
}

// Compile validates the definition and freezes it.
//
// Validation rejects:
//   - builder errors (empty, reserved or duplicate names, nil nodes/routers)
//   - a missing or unknown entry node
//   - transitions from or to unknown nodes
//   - nodes without an outgoing transition
//   - nodes unreachable from the entry
//
// All problems are reported in one EngineError with code INVALID_GRAPH.
func (g *Graph[S, U]) Compile() (*Compiled[S, U], error) {
	errs := append([]error(nil), g.errs...)

	if g.entry == "" {
		errs = append(errs, errors.New("entry node not set"))
	} else if _, ok := g.nodes[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q does not exist", g.entry))
	}

	for from, e := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("transition declared from unknown node %q", from))
		}
		for _, to := range e.successors() {
			if to == END {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				errs = append(errs, fmt.Errorf("transition %q -> %q targets unknown node", from, to))
			}
		}
	}

	for _, name := range g.order {
		if _, ok := g.edges[name]; !ok {
			errs = append(errs, fmt.Errorf("node %q has no outgoing transition", name))
		}
	}

	if _, ok := g.nodes[g.entry]; ok {
		reached := g.reachable()
		for _, name := range g.order {
			if !reached[name] {
				errs = append(errs, fmt.Errorf("node %q is unreachable from entry %q", name, g.entry))
			}
		}
	}

	if len(errs) > 0 {
		return nil, &EngineError{
			Message: "invalid graph definition",
			Code:    CodeInvalidGraph,
			Cause:   errors.Join(errs...),
		}
	}

	c := &Compiled[S, U]{
		entry: g.entry,
		nodes: make(map[string]nodeSpec[S, U], len(g.nodes)),
		order: append([]string(nil), g.order...),
		edges: make(map[string]Edge[S], len(g.edges)),
	}
	for k, v := range g.nodes {
		c.nodes[k] = v
	}
	for k, v := range g.edges {
		c.edges[k] = v
	}
	return c, nil
}

// reachable walks declared successors breadth-first from the entry.
func (g *Graph[S, U]) reachable() map[string]bool {
	seen := map[string]bool{g.entry: true}
	queue := []string{g.entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		e, ok := g.edges[cur]
		if !ok {
			continue
		}
		for _, to := range e.successors() {
			if to == END || seen[to] {
				continue
			}
			seen[to] = true
			queue = append(queue, to)
		}
	}
	return seen
}

// Compiled is a validated, immutable graph. It is safe to share across
// goroutines and engines.
type Compiled[S, U any] struct {
	entry string
	nodes map[string]nodeSpec[S, U]
	order []string
	edges map[string]Edge[S]
}

// Entry returns the name of the entry node.
func (c *Compiled[S, U]) Entry() string { return c.entry }

// Nodes returns node names in declaration order.
func (c *Compiled[S, U]) Nodes() []string {
	return append([]string(nil), c.order...)
}

// Edge returns the outgoing transition of a node.
func (c *Compiled[S, U]) Edge(name string) (Edge[S], bool) {
	e, ok := c.edges[name]
	return e, ok
}

// Next evaluates the transition out of a node against post-merge state.
func (c *Compiled[S, U]) Next(from string, state S) (string, error) {
	e, ok := c.edges[from]
	if !ok {
		return "", &EngineError{
			Message: "no transition declared",
			Code:    CodeRoutingError,
			NodeID:  from,
		}
	}
	return e.next(state)
}

func (c *Compiled[S, U]) node(name string) (nodeSpec[S, U], bool) {
	n, ok := c.nodes[name]
	return n, ok
}
