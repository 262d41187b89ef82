package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"
)

// ErrNotFound is returned when a thread has no persisted checkpoint.
var ErrNotFound = errors.New("not found")

// Checkpoint is the persisted snapshot of one thread after a super-step.
//
// The next node is deliberately not stored: the engine derives it by
// re-evaluating the router of NodeID against State when resuming.
type Checkpoint[S any] struct {
	// ThreadID is the conversation key. One thread holds one checkpoint chain.
	ThreadID string `json:"thread_id"`

	// RunID identifies the run that wrote this checkpoint.
	RunID string `json:"run_id"`

	// Step is the thread-wide super-step counter. It increases monotonically
	// across runs of the same thread.
	Step int `json:"step"`

	// NodeID is the node whose update produced State. It is empty for the
	// checkpoint written after merging the caller's input.
	NodeID string `json:"node_id"`

	// State is the full post-merge state.
	State S `json:"state"`

	// CreatedAt is when the checkpoint was written.
	CreatedAt time.Time `json:"created_at"`
}

// Store persists checkpoints keyed by thread id.
//
// Implementations:
//   - MemStore: in-process maps (tests, development)
//   - SQLiteStore: single-file database
//   - MySQLStore: shared relational database
//   - RedisStore: key-value store with optional expiry
//
// All implementations must be safe for concurrent use across threads.
//
// Type parameter S is the state type to persist (must be JSON-serializable).
type Store[S any] interface {
	// Save appends cp to the thread's history and makes it the latest checkpoint.
	Save(ctx context.Context, cp Checkpoint[S]) error

	// Load returns the latest checkpoint of a thread, or ErrNotFound.
	Load(ctx context.Context, threadID string) (Checkpoint[S], error)

	// History returns every checkpoint of a thread in ascending step order,
	// or ErrNotFound when the thread is unknown.
	History(ctx context.Context, threadID string) ([]Checkpoint[S], error)

	// Delete removes every checkpoint of a thread. Deleting an unknown
	// thread is not an error.
	Delete(ctx context.Context, threadID string) error
}

func sortByStep[S any](cps []Checkpoint[S]) {
	slices.SortStableFunc(cps, func(a, b Checkpoint[S]) int {
		return cmp.Compare(a.Step, b.Step)
	})
}
