package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-memory implementation of Store[S].
//
// Checkpoints are kept as JSON documents so that callers can never alias
// state held by the store, matching what a database-backed store returns.
//
// Limitations:
//   - Data is lost when process terminates
//   - Not suitable for distributed systems
//   - Memory usage grows with thread history
type MemStore[S any] struct {
	mu      sync.RWMutex
	threads map[string][]memRecord
}

type memRecord struct {
	step int
	data []byte
}

// NewMemStore creates a new in-memory store.
//
// Example:
//
//	st := store.NewMemStore[MyState]()
//	engine, err := graph.New(compiled, reducer, st, emitter)
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{threads: make(map[string][]memRecord)}
}

// Save implements Store. Saving the same (thread, step) twice overwrites
// the earlier record.
func (m *MemStore[S]) Save(_ context.Context, cp Checkpoint[S]) error {
	if cp.ThreadID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	data, err := marshalCheckpoint(cp)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.threads[cp.ThreadID]
	for i := range records {
		if records[i].step == cp.Step {
			records[i].data = data
			return nil
		}
	}
	m.threads[cp.ThreadID] = append(records, memRecord{step: cp.Step, data: data})
	return nil
}

// Load implements Store. The record with the highest step wins, so
// out-of-order saves are tolerated.
func (m *MemStore[S]) Load(_ context.Context, threadID string) (Checkpoint[S], error) {
	m.mu.RLock()
	records := m.threads[threadID]
	var latest *memRecord
	for i := range records {
		if latest == nil || records[i].step >= latest.step {
			latest = &records[i]
		}
	}
	m.mu.RUnlock()

	if latest == nil {
		return Checkpoint[S]{}, ErrNotFound
	}
	return decodeCheckpoint[S](latest.data)
}

// History implements Store.
func (m *MemStore[S]) History(_ context.Context, threadID string) ([]Checkpoint[S], error) {
	m.mu.RLock()
	records := append([]memRecord(nil), m.threads[threadID]...)
	m.mu.RUnlock()

	if len(records) == 0 {
		return nil, ErrNotFound
	}
	out := make([]Checkpoint[S], 0, len(records))
	for _, r := range records {
		cp, err := decodeCheckpoint[S](r.data)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sortByStep(out)
	return out, nil
}

// Delete implements Store.
func (m *MemStore[S]) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	return nil
}

func marshalCheckpoint[S any](cp Checkpoint[S]) ([]byte, error) {
	data, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

func decodeCheckpoint[S any](data []byte) (Checkpoint[S], error) {
	var cp Checkpoint[S]
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint[S]{}, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return cp, nil
}
