package graph

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/shopagent/graph/emit"
	"github.com/dshills/shopagent/graph/store"
)

// loopState is a small workflow state used across engine tests.
type loopState struct {
	Count int      `json:"count"`
	Trail []string `json:"trail"`
	Input string   `json:"input"`
}

// loopUpdate is the sparse update for loopState.
type loopUpdate struct {
	Add   int    `json:"add"`
	Visit string `json:"visit"`
	Input string `json:"input"`
}

func reduceLoop(prev loopState, u loopUpdate) loopState {
	next := prev
	next.Count += u.Add
	if u.Visit != "" {
		next.Trail = append(append([]string(nil), prev.Trail...), u.Visit)
	}
	if u.Input != "" {
		next.Input = u.Input
	}
	return next
}

// visit returns a node that records its name and adds one to Count.
func visit(name string) Node[loopState, loopUpdate] {
	return NodeFunc[loopState, loopUpdate](func(_ context.Context, _ loopState) NodeResult[loopUpdate] {
		return NodeResult[loopUpdate]{Delta: loopUpdate{Add: 1, Visit: name}}
	})
}

// loopGraph builds: work -> check; check routes back to work until Count
// reaches limit, then END.
func loopGraph(limit int) *Compiled[loopState, loopUpdate] {
	g, err := NewGraph[loopState, loopUpdate]().
		AddNode("work", visit("work")).
		AddNode("check", NodeFunc[loopState, loopUpdate](func(_ context.Context, _ loopState) NodeResult[loopUpdate] {
			return NodeResult[loopUpdate]{Delta: loopUpdate{Visit: "check"}}
		})).
		SetEntry("work").
		AddEdge("work", "check").
		AddConditionalEdges("check", func(s loopState) string {
			if s.Count >= limit {
				return END
			}
			return "work"
		}, "work", END).
		Compile()
	if err != nil {
		panic(err)
	}
	return g
}

// flakyStore fails Save once failAt saves have succeeded.
type flakyStore struct {
	*store.MemStore[loopState]
	mu     sync.Mutex
	saves  int
	failAt int
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) Save(ctx context.Context, cp store.Checkpoint[loopState]) error {
	f.mu.Lock()
	f.saves++
	n := f.saves
	f.mu.Unlock()
	if f.failAt > 0 && n > f.failAt {
		return errDiskFull
	}
	return f.MemStore.Save(ctx, cp)
}

// panicEmitter always panics.
type panicEmitter struct{}

func (panicEmitter) Emit(emit.Event) { panic("emitter exploded") }
