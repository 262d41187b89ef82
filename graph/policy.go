package graph

import "time"

// NodePolicy configures the execution behavior for a specific node.
//
// Attach it with Graph.AddNodeWithPolicy. Fields left at their zero value
// fall back to the engine Options.
type NodePolicy struct {
	// Timeout is the maximum execution time allowed for this node.
	// If zero, Options.DefaultNodeTimeout is used.
	Timeout time.Duration
}
