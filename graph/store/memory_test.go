package store_test

import (
	"context"
	"testing"

	"github.com/dshills/shopagent/graph/store"
)

func TestMemStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) store.Store[testState] {
		return store.NewMemStore[testState]()
	})
}

func TestMemStore_NoAliasing(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore[testState]()

	cp := checkpoint("alias", 1, "n", 1)
	if err := st.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cp.State.Messages[0] = "mutated after save"

	got, err := st.Load(ctx, "alias")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State.Messages[0] != "m1" {
		t.Errorf("store shares memory with caller: %q", got.State.Messages[0])
	}

	got.State.Messages[0] = "mutated after load"
	again, _ := st.Load(ctx, "alias")
	if again.State.Messages[0] != "m1" {
		t.Errorf("loaded value aliases stored value: %q", again.State.Messages[0])
	}
}

func TestMemStore_RejectsEmptyThread(t *testing.T) {
	st := store.NewMemStore[testState]()
	if err := st.Save(context.Background(), checkpoint("", 1, "n", 1)); err == nil {
		t.Fatal("expected error for empty thread id")
	}
}
