package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/shopagent/graph/emit"
	"github.com/dshills/shopagent/graph/store"
)

// Reducer merges a partial update into the current state. It must be
// deterministic and must not retain references to prev or delta.
type Reducer[S, U any] func(prev S, delta U) S

// Engine executes a compiled graph against per-thread state.
//
// The Engine:
//   - Loads the thread's checkpoint (or starts from the zero S)
//   - Merges the caller's input and checkpoints it
//   - Runs one node per super-step on a private copy of the state
//   - Merges the node's update via the reducer
//   - Persists a checkpoint after every merge, before routing
//   - Evaluates the declared transition against post-merge state
//   - Streams a StepEvent per super-step and emits observability events
//
// Runs on distinct threads may execute concurrently; callers must not run
// two streams on the same thread at the same time.
//
// Type parameter S is the state type; U is the partial update type.
type Engine[S, U any] struct {
	graph       *Compiled[S, U]
	reducer     Reducer[S, U]
	checkpoints checkpointer[S]
	emitter     emit.Emitter
	opts        Options
}

// New creates an Engine.
//
// Parameters:
//   - g: validated graph (required)
//   - reducer: merges partial updates (required)
//   - st: checkpoint store (required)
//   - emitter: observability sink (optional, may be nil)
//   - opts: functional options (MaxSteps, timeouts, metrics)
func New[S, U any](g *Compiled[S, U], reducer Reducer[S, U], st store.Store[S], emitter emit.Emitter, opts ...Option) (*Engine[S, U], error) {
	switch {
	case g == nil:
		return nil, &EngineError{Message: "compiled graph is required", Code: CodeInvalidGraph}
	case reducer == nil:
		return nil, &EngineError{Message: "reducer is required", Code: CodeInvalidGraph}
	case st == nil:
		return nil, &EngineError{Message: "store is required", Code: CodeStoreError}
	}
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}

	cfg := engineConfig{}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("invalid engine option: %w", err)
		}
	}

	return &Engine[S, U]{
		graph:       g,
		reducer:     reducer,
		checkpoints: checkpointer[S]{store: st, metrics: cfg.opts.Metrics},
		emitter:     emitter,
		opts:        cfg.opts,
	}, nil
}

// Graph returns the compiled graph the engine runs.
func (e *Engine[S, U]) Graph() *Compiled[S, U] {
	return e.graph
}

// Stream starts a run on threadID. The input update is merged into the
// thread's state (zero S for a new thread) and checkpointed as its own
// step, then execution starts at the entry node.
//
// ctx bounds store and node calls. To stop a run at a step boundary without
// tearing down the step in flight, call Stream.Close instead of cancelling.
func (e *Engine[S, U]) Stream(ctx context.Context, threadID string, input U) *Stream[S] {
	s := newStream[S]()
	go e.run(ctx, s, threadID, &input)
	return s
}

// Resume continues the thread from its latest checkpoint. The next node is
// recomputed by re-evaluating the transition of the checkpoint's node, so a
// thread whose last run reached END resumes to an immediate finish.
func (e *Engine[S, U]) Resume(ctx context.Context, threadID string) *Stream[S] {
	s := newStream[S]()
	go e.run(ctx, s, threadID, nil)
	return s
}

// Run executes a full run and returns the final state.
func (e *Engine[S, U]) Run(ctx context.Context, threadID string, input U) (S, error) {
	s := e.Stream(ctx, threadID, input)
	for range s.Events() {
	}
	return s.Wait()
}

// State returns the latest checkpointed state of a thread.
func (e *Engine[S, U]) State(ctx context.Context, threadID string) (store.Checkpoint[S], error) {
	cp, found, err := e.checkpoints.load(ctx, threadID)
	if err != nil {
		return store.Checkpoint[S]{}, err
	}
	if !found {
		return store.Checkpoint[S]{}, store.ErrNotFound
	}
	return cp, nil
}

// Forget deletes every checkpoint of a thread.
func (e *Engine[S, U]) Forget(ctx context.Context, threadID string) error {
	if err := e.checkpoints.store.Delete(ctx, threadID); err != nil {
		return &EngineError{Message: "failed to delete thread " + threadID, Code: CodeStoreError, Cause: err}
	}
	return nil
}

// runState is the mutable bookkeeping of one run.
type runState[S any] struct {
	threadID string
	runID    string
	step     int
	state    S
}

func (e *Engine[S, U]) run(ctx context.Context, s *Stream[S], threadID string, input *U) {
	rs := &runState[S]{threadID: threadID, runID: uuid.NewString()}
	e.opts.Metrics.RunStarted()
	e.emit(rs, "", emit.MsgRunStart, nil)

	err := e.execute(ctx, s, rs, input)

	outcome, msg := "completed", emit.MsgRunComplete
	var meta map[string]interface{}
	switch {
	case errors.Is(err, ErrStreamClosed):
		outcome, msg = "stopped", emit.MsgRunStopped
	case err != nil:
		outcome, msg = "failed", emit.MsgRunFailed
		meta = map[string]interface{}{"error": err.Error()}
	}
	e.opts.Metrics.RunFinished(outcome)
	e.emit(rs, "", msg, meta)

	if err != nil && !errors.Is(err, ErrStreamClosed) {
		var zero S
		s.finish(zero, err)
		return
	}
	s.finish(rs.state, err)
}

func (e *Engine[S, U]) execute(ctx context.Context, s *Stream[S], rs *runState[S], input *U) error {
	cp, found, err := e.checkpoints.load(ctx, rs.threadID)
	if err != nil {
		return err
	}
	if found {
		rs.state = cp.State
		rs.step = cp.Step
	}

	var next string
	if input != nil {
		rs.state = e.reducer(rs.state, *input)
		rs.step++
		if err := e.save(ctx, rs, ""); err != nil {
			return err
		}
		next = e.graph.Entry()
		if err := e.publish(s, rs, "", next, nil); err != nil {
			return err
		}
	} else {
		if !found {
			return &EngineError{Message: "no checkpoint for thread " + rs.threadID, Code: CodeThreadNotFound}
		}
		next, err = e.resumeTarget(cp)
		if err != nil {
			return err
		}
	}

	for executed := 0; next != END; executed++ {
		if e.opts.MaxSteps > 0 && executed >= e.opts.MaxSteps {
			return &EngineError{
				Message: fmt.Sprintf("workflow exceeded MaxSteps limit of %d", e.opts.MaxSteps),
				Code:    CodeMaxStepsExceeded,
				NodeID:  next,
			}
		}
		if s.stopped() {
			return ErrStreamClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		current := next
		result, err := e.runNode(ctx, rs, current)
		if err != nil {
			return err
		}

		rs.state = e.reducer(rs.state, result.Delta)
		rs.step++
		if err := e.save(ctx, rs, current); err != nil {
			return err
		}

		next, err = e.graph.Next(current, rs.state)
		if err != nil {
			return err
		}
		if err := e.publish(s, rs, current, next, result.Meta); err != nil {
			return err
		}
	}
	return nil
}

// resumeTarget reconstructs the node to run after a checkpoint.
func (e *Engine[S, U]) resumeTarget(cp store.Checkpoint[S]) (string, error) {
	if cp.NodeID == "" {
		return e.graph.Entry(), nil
	}
	if _, ok := e.graph.node(cp.NodeID); !ok {
		return "", &EngineError{
			Message: "checkpoint references a node missing from the graph",
			Code:    CodeRoutingError,
			NodeID:  cp.NodeID,
		}
	}
	return e.graph.Next(cp.NodeID, cp.State)
}

// runNode executes one node on a copy of the state.
func (e *Engine[S, U]) runNode(ctx context.Context, rs *runState[S], nodeID string) (NodeResult[U], error) {
	spec, ok := e.graph.node(nodeID)
	if !ok {
		return NodeResult[U]{}, &EngineError{Message: "node not found during execution", Code: CodeRoutingError, NodeID: nodeID}
	}

	snapshot, err := clone(rs.state)
	if err != nil {
		return NodeResult[U]{}, &EngineError{Message: "failed to copy state", Code: CodeStateError, NodeID: nodeID, Cause: err}
	}

	start := time.Now()
	result, runErr := runBounded(ctx, spec.node, nodeID, snapshot, spec.policy.budget(e.opts.DefaultNodeTimeout))
	latency := time.Since(start)

	switch {
	case runErr != nil:
		status := "error"
		if ErrorCode(runErr) == CodeNodeTimeout {
			status = "timeout"
		}
		e.opts.Metrics.RecordStep(nodeID, latency, status)
		e.emit(rs, nodeID, emit.MsgNodeError, map[string]interface{}{"error": runErr.Error()})
		return NodeResult[U]{}, runErr
	case result.Err != nil:
		e.opts.Metrics.RecordStep(nodeID, latency, "error")
		e.emit(rs, nodeID, emit.MsgNodeError, map[string]interface{}{"error": result.Err.Error()})
		return NodeResult[U]{}, &EngineError{Message: "node failed", Code: CodeNodeError, NodeID: nodeID, Cause: result.Err}
	}

	e.opts.Metrics.RecordStep(nodeID, latency, "success")
	if result.Meta == nil {
		result.Meta = make(map[string]interface{}, 1)
	}
	result.Meta["latency_ms"] = latency.Milliseconds()
	return result, nil
}

func (e *Engine[S, U]) save(ctx context.Context, rs *runState[S], nodeID string) error {
	return e.checkpoints.save(ctx, store.Checkpoint[S]{
		ThreadID: rs.threadID,
		RunID:    rs.runID,
		Step:     rs.step,
		NodeID:   nodeID,
		State:    rs.state,
	})
}

// publish emits the step event and hands it to the stream consumer.
func (e *Engine[S, U]) publish(s *Stream[S], rs *runState[S], nodeID, next string, meta map[string]interface{}) error {
	eventMeta := make(map[string]interface{}, len(meta)+1)
	for k, v := range meta {
		eventMeta[k] = v
	}
	eventMeta["next"] = next
	e.emit(rs, nodeID, emit.MsgStepComplete, eventMeta)

	snapshot, err := clone(rs.state)
	if err != nil {
		return &EngineError{Message: "failed to copy state", Code: CodeStateError, NodeID: nodeID, Cause: err}
	}
	ok := s.send(StepEvent[S]{
		ThreadID: rs.threadID,
		RunID:    rs.runID,
		Step:     rs.step,
		NodeID:   nodeID,
		Next:     next,
		State:    snapshot,
		Meta:     meta,
	})
	if !ok {
		return ErrStreamClosed
	}
	return nil
}

// emit forwards an event to the emitter. Emitter panics are swallowed:
// observability must never take a run down.
func (e *Engine[S, U]) emit(rs *runState[S], nodeID, msg string, meta map[string]interface{}) {
	defer func() {
		_ = recover()
	}()
	e.emitter.Emit(emit.Event{
		ThreadID: rs.threadID,
		RunID:    rs.runID,
		Step:     rs.step,
		NodeID:   nodeID,
		Msg:      msg,
		Meta:     meta,
	})
}
