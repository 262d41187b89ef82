package emit

import "testing"

func TestBufferedEmitter_History(t *testing.T) {
	buf := NewBufferedEmitter()
	if got := buf.History("none"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}

	buf.Emit(Event{ThreadID: "t1", Step: 1, NodeID: "a", Msg: MsgStepComplete})
	buf.Emit(Event{ThreadID: "t2", Step: 1, NodeID: "a", Msg: MsgStepComplete})
	buf.Emit(Event{ThreadID: "t1", Step: 2, NodeID: "b", Msg: MsgStepComplete})
	buf.Emit(Event{ThreadID: "t1", Step: 2, Msg: MsgRunComplete})

	if got := len(buf.History("t1")); got != 3 {
		t.Errorf("t1 history = %d events, want 3", got)
	}

	hist := buf.History("t1")
	hist[0].NodeID = "mutated"
	if buf.History("t1")[0].NodeID != "a" {
		t.Error("History must return a copy")
	}
}

func TestBufferedEmitter_Filter(t *testing.T) {
	buf := NewBufferedEmitter()
	for step := 1; step <= 5; step++ {
		node := "a"
		if step%2 == 0 {
			node = "b"
		}
		buf.Emit(Event{ThreadID: "t", Step: step, NodeID: node, Msg: MsgStepComplete})
	}
	buf.Emit(Event{ThreadID: "t", Step: 5, Msg: MsgRunComplete})

	two, four := 2, 4
	tests := []struct {
		name   string
		filter HistoryFilter
		want   int
	}{
		{"no filter", HistoryFilter{}, 6},
		{"by node", HistoryFilter{NodeID: "b"}, 2},
		{"by msg", HistoryFilter{Msg: MsgRunComplete}, 1},
		{"step window", HistoryFilter{MinStep: &two, MaxStep: &four}, 3},
		{"combined", HistoryFilter{NodeID: "a", MinStep: &two}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(buf.Filter("t", tt.filter)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestBufferedEmitter_Clear(t *testing.T) {
	buf := NewBufferedEmitter()
	buf.Emit(Event{ThreadID: "a"})
	buf.Emit(Event{ThreadID: "b"})

	buf.Clear("a")
	if len(buf.History("a")) != 0 || len(buf.History("b")) != 1 {
		t.Fatal("Clear(a) should only drop thread a")
	}
	buf.Clear("")
	if len(buf.History("b")) != 0 {
		t.Fatal("Clear(\"\") should drop everything")
	}
}
