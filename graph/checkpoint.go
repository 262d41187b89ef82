package graph

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/shopagent/graph/store"
)

// checkpointer is the engine's view of the store: it wraps store failures
// in STORE_ERROR and counts them.
type checkpointer[S any] struct {
	store   store.Store[S]
	metrics *PrometheusMetrics
}

// load returns the latest checkpoint. found is false for unknown threads.
func (c checkpointer[S]) load(ctx context.Context, threadID string) (cp store.Checkpoint[S], found bool, err error) {
	cp, err = c.store.Load(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Checkpoint[S]{}, false, nil
	}
	if err != nil {
		c.metrics.CheckpointFailed("load")
		return store.Checkpoint[S]{}, false, &EngineError{
			Message: "failed to load checkpoint for thread " + threadID,
			Code:    CodeStoreError,
			Cause:   err,
		}
	}
	return cp, true, nil
}

// save persists the post-merge state of a super-step.
func (c checkpointer[S]) save(ctx context.Context, cp store.Checkpoint[S]) error {
	cp.CreatedAt = time.Now().UTC()
	if err := c.store.Save(ctx, cp); err != nil {
		c.metrics.CheckpointFailed("save")
		return &EngineError{
			Message: "failed to save checkpoint",
			Code:    CodeStoreError,
			NodeID:  cp.NodeID,
			Cause:   err,
		}
	}
	return nil
}
