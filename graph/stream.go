package graph

import "sync"

// StepEvent describes one completed super-step.
type StepEvent[S any] struct {
	// ThreadID and RunID identify the run.
	ThreadID string
	RunID    string

	// Step is the thread-wide step counter of the checkpoint just saved.
	Step int

	// NodeID is the node that ran. It is "" for the step that merged the
	// caller's input.
	NodeID string

	// Next is the node the run continues with, or END.
	Next string

	// State is a copy of the post-merge state.
	State S

	// Meta is the node's observability metadata.
	Meta map[string]interface{}
}

// Stream is a running workflow. Step events are delivered on an unbuffered
// channel, so a slow consumer holds the run at the next step boundary.
//
// Consumers must either drain Events until it is closed or call Close:
//
//	s := engine.Stream(ctx, "thread-1", input)
//	defer s.Close()
//	for ev := range s.Events() {
//	    fmt.Println(ev.NodeID, "->", ev.Next)
//	}
//	final, err := s.Wait()
type Stream[S any] struct {
	events   chan StepEvent[S]
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	final S
	err   error
}

func newStream[S any]() *Stream[S] {
	return &Stream[S]{
		events: make(chan StepEvent[S]),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Events returns the step event channel. It is closed when the run ends.
func (s *Stream[S]) Events() <-chan StepEvent[S] {
	return s.events
}

// Close asks the run to stop. The step in flight still merges and saves its
// checkpoint; no further step starts. Close is idempotent and never blocks.
func (s *Stream[S]) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed once the run has finished.
func (s *Stream[S]) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the run finishes and returns the final state. A run
// stopped through Close returns the last saved state and ErrStreamClosed.
//
// Wait does not drain Events; call it after the range loop or after Close.
func (s *Stream[S]) Wait() (S, error) {
	<-s.done
	return s.final, s.err
}

// stopped reports whether Close has been called.
func (s *Stream[S]) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// send delivers ev unless the consumer stops first.
func (s *Stream[S]) send(ev StepEvent[S]) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Stream[S]) finish(final S, err error) {
	s.final = final
	s.err = err
	close(s.events)
	close(s.done)
}
