package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// budget returns the time a node may run for. A policy timeout wins over the
// engine default; zero means unbounded.
func (p *NodePolicy) budget(fallback time.Duration) time.Duration {
	if p != nil && p.Timeout > 0 {
		return p.Timeout
	}
	return max(fallback, 0)
}

// runBounded calls node.Run under limit. A node still running when its own
// deadline fires reports CodeNodeTimeout, whatever it returned.
// Cancellation of the parent context is not a timeout. A panicking node
// reports CodeNodeError.
func runBounded[S, U any](ctx context.Context, node Node[S, U], nodeID string, state S, limit time.Duration) (res NodeResult[U], err error) {
	defer func() {
		if p := recover(); p != nil {
			res = NodeResult[U]{}
			err = &EngineError{
				Message: "node failed",
				Code:    CodeNodeError,
				NodeID:  nodeID,
				Cause:   fmt.Errorf("node panicked: %v", p),
			}
		}
	}()

	if limit <= 0 {
		return node.Run(ctx, state), nil
	}

	bounded, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	res = node.Run(bounded, state)
	if ctx.Err() != nil || !errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return res, nil
	}
	return res, &EngineError{
		Message: fmt.Sprintf("exceeded timeout of %v", limit),
		Code:    CodeNodeTimeout,
		NodeID:  nodeID,
		Cause:   context.DeadlineExceeded,
	}
}
