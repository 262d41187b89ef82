package assistant

import (
	"testing"

	"github.com/dshills/shopagent/graph"
	"github.com/dshills/shopagent/graph/model"
)

func TestRouteCoordinator(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{
			name:  "over the cap",
			state: State{Coordinator: AgentState{Iteration: 4}, NextAgent: ProductQA},
			want:  graph.END,
		},
		{
			name:  "at the cap still delegates",
			state: State{Coordinator: AgentState{Iteration: 3}, NextAgent: ProductQA},
			want:  ProductQA,
		},
		{
			name:  "final with empty plan",
			state: State{Coordinator: AgentState{Iteration: 1, FinalAnswer: true}},
			want:  graph.END,
		},
		{
			name: "final with pending plan delegates",
			state: State{
				Coordinator: AgentState{Iteration: 1, FinalAnswer: true},
				Plan:        []Delegation{{Agent: ShoppingCart, Task: "add"}},
			},
			want: ShoppingCart,
		},
		{
			name:  "next agent",
			state: State{Coordinator: AgentState{Iteration: 1}, NextAgent: WarehouseManager},
			want:  WarehouseManager,
		},
		{
			name: "falls back to plan",
			state: State{
				Coordinator: AgentState{Iteration: 1},
				Plan:        []Delegation{{Agent: ProductQA}, {Agent: ShoppingCart}},
			},
			want: ProductQA,
		},
		{
			name:  "unknown agent ends the run",
			state: State{Coordinator: AgentState{Iteration: 1}, NextAgent: "pricing_agent"},
			want:  graph.END,
		},
		{
			name:  "no delegate",
			state: State{Coordinator: AgentState{Iteration: 1}},
			want:  graph.END,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RouteCoordinator(tt.state); got != tt.want {
				t.Errorf("RouteCoordinator() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouteSpecialist(t *testing.T) {
	pending := []model.ToolCall{{ID: "c", Name: "search"}}
	tests := []struct {
		name  string
		agent string
		rec   AgentState
		want  string
	}{
		{"final answer", ProductQA, AgentState{Iteration: 1, FinalAnswer: true, ToolCalls: pending}, Coordinator},
		{"qa under its cap", ProductQA, AgentState{Iteration: 4, ToolCalls: pending}, ToolNode(ProductQA)},
		{"qa over its cap", ProductQA, AgentState{Iteration: 5, ToolCalls: pending}, Coordinator},
		{"cart at its cap", ShoppingCart, AgentState{Iteration: 2, ToolCalls: pending}, ToolNode(ShoppingCart)},
		{"cart over its cap", ShoppingCart, AgentState{Iteration: 3, ToolCalls: pending}, Coordinator},
		{"warehouse over its cap", WarehouseManager, AgentState{Iteration: 3, ToolCalls: pending}, Coordinator},
		{"no pending calls", WarehouseManager, AgentState{Iteration: 1}, Coordinator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s State
			*s.Agent(tt.agent) = tt.rec
			if got := RouteSpecialist(tt.agent)(s); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoutersArePure(t *testing.T) {
	s := State{Coordinator: AgentState{Iteration: 2}, NextAgent: ProductQA}
	s.ProductQA = AgentState{Iteration: 1, ToolCalls: []model.ToolCall{{Name: "search"}}}
	for i := 0; i < 3; i++ {
		if RouteCoordinator(s) != ProductQA || RouteSpecialist(ProductQA)(s) != ToolNode(ProductQA) {
			t.Fatal("router answer changed between evaluations")
		}
	}
	if s.Coordinator.Iteration != 2 || len(s.ProductQA.ToolCalls) != 1 {
		t.Fatal("router mutated state")
	}
}

func TestSpecialistCaps(t *testing.T) {
	if SpecialistCap(ProductQA) != 4 {
		t.Errorf("product QA cap = %d", SpecialistCap(ProductQA))
	}
	for _, name := range []string{ShoppingCart, WarehouseManager} {
		if SpecialistCap(name) != 2 {
			t.Errorf("%s cap = %d", name, SpecialistCap(name))
		}
	}
}

func TestStepBound(t *testing.T) {
	// 4 coordinator turns plus 3 delegations of 5 QA turns and 4 tool steps.
	if got := StepBound(); got != 31 {
		t.Errorf("StepBound() = %d, want 31", got)
	}
}
