package emit

// Emitter receives observability events from the engine.
//
// Implementations:
//   - LogEmitter: structured logs through zap
//   - OTelEmitter: one OpenTelemetry span per event
//   - BufferedEmitter: in-memory history, used by tests and debugging endpoints
//   - NullEmitter: discards everything
//
// Emit is called synchronously from the run goroutine.
type Emitter interface {
	Emit(event Event)
}

// Multi fans every event out to all emitters in order.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
