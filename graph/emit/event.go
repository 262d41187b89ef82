package emit

// Event is one observability record produced by the engine.
//
// Events are informational: emitters must never block the run for long and
// their failures never abort it.
type Event struct {
	// ThreadID is the conversation the run belongs to.
	ThreadID string

	// RunID identifies a single run on the thread.
	RunID string

	// Step is the thread-wide super-step counter.
	Step int

	// NodeID is the node the event is about ("" for run-level events).
	NodeID string

	// Msg is the event kind, one of the Msg* constants.
	Msg string

	// Meta holds event attributes. Well-known keys:
	//   - "next": node routed into after the step
	//   - "latency_ms": node execution time
	//   - "model", "tokens_in", "tokens_out", "cost_usd": LLM usage
	//   - "tools": tool names called by a tool node
	//   - "error": error text for failure events
	Meta map[string]interface{}
}

// Event kinds.
const (
	MsgRunStart     = "run_start"
	MsgStepComplete = "step_complete"
	MsgNodeError    = "node_error"
	MsgRunComplete  = "run_complete"
	MsgRunStopped   = "run_stopped"
	MsgRunFailed    = "run_failed"
)

// IsFailure reports whether the event describes an error.
func (e Event) IsFailure() bool {
	return e.Msg == MsgNodeError || e.Msg == MsgRunFailed
}
