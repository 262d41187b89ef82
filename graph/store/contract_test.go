package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dshills/shopagent/graph/store"
)

type testState struct {
	Counter  int      `json:"counter"`
	Messages []string `json:"messages"`
}

func checkpoint(thread string, step int, node string, counter int) store.Checkpoint[testState] {
	return store.Checkpoint[testState]{
		ThreadID:  thread,
		RunID:     "run-" + thread,
		Step:      step,
		NodeID:    node,
		State:     testState{Counter: counter, Messages: []string{fmt.Sprintf("m%d", counter)}},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// runStoreContract exercises the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) store.Store[testState]) {
	t.Helper()
	ctx := context.Background()

	t.Run("load unknown thread returns ErrNotFound", func(t *testing.T) {
		st := newStore(t)
		if _, err := st.Load(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := st.History(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound from History, got %v", err)
		}
	})

	t.Run("load returns highest step", func(t *testing.T) {
		st := newStore(t)
		for _, cp := range []store.Checkpoint[testState]{
			checkpoint("t1", 1, "", 1),
			checkpoint("t1", 3, "coordinator", 3),
			checkpoint("t1", 2, "agent", 2),
		} {
			if err := st.Save(ctx, cp); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}

		got, err := st.Load(ctx, "t1")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.Step != 3 || got.NodeID != "coordinator" || got.State.Counter != 3 {
			t.Errorf("unexpected latest checkpoint: %+v", got)
		}
		if got.RunID != "run-t1" {
			t.Errorf("RunID = %q", got.RunID)
		}
		if len(got.State.Messages) != 1 || got.State.Messages[0] != "m3" {
			t.Errorf("state not round-tripped: %+v", got.State)
		}
	})

	t.Run("history is ordered by step", func(t *testing.T) {
		st := newStore(t)
		for _, step := range []int{2, 1, 3} {
			if err := st.Save(ctx, checkpoint("t2", step, "n", step)); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}
		hist, err := st.History(ctx, "t2")
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(hist) != 3 {
			t.Fatalf("expected 3 checkpoints, got %d", len(hist))
		}
		for i, cp := range hist {
			if cp.Step != i+1 {
				t.Errorf("history[%d].Step = %d", i, cp.Step)
			}
		}
	})

	t.Run("saving same step overwrites", func(t *testing.T) {
		st := newStore(t)
		_ = st.Save(ctx, checkpoint("t3", 1, "a", 1))
		if err := st.Save(ctx, checkpoint("t3", 1, "b", 7)); err != nil {
			t.Fatalf("Save: %v", err)
		}
		hist, err := st.History(ctx, "t3")
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(hist) != 1 || hist[0].NodeID != "b" || hist[0].State.Counter != 7 {
			t.Errorf("expected overwritten record, got %+v", hist)
		}
	})

	t.Run("threads are isolated and delete removes one", func(t *testing.T) {
		st := newStore(t)
		_ = st.Save(ctx, checkpoint("a", 1, "n", 1))
		_ = st.Save(ctx, checkpoint("b", 1, "n", 2))

		if err := st.Delete(ctx, "a"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := st.Load(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("deleted thread still loads: %v", err)
		}
		got, err := st.Load(ctx, "b")
		if err != nil || got.State.Counter != 2 {
			t.Errorf("other thread affected: %+v, %v", got, err)
		}
		if err := st.Delete(ctx, "never-existed"); err != nil {
			t.Errorf("deleting unknown thread should succeed, got %v", err)
		}
	})

	t.Run("concurrent threads", func(t *testing.T) {
		st := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				thread := fmt.Sprintf("c%d", i)
				for step := 1; step <= 5; step++ {
					if err := st.Save(ctx, checkpoint(thread, step, "n", step*10+i)); err != nil {
						t.Errorf("Save: %v", err)
						return
					}
				}
			}(i)
		}
		wg.Wait()

		for i := 0; i < 8; i++ {
			got, err := st.Load(ctx, fmt.Sprintf("c%d", i))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.Step != 5 || got.State.Counter != 50+i {
				t.Errorf("thread c%d: got step %d counter %d", i, got.Step, got.State.Counter)
			}
		}
	})
}
