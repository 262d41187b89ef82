package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/shopagent/graph/model"
)

func TestParseSpecialist(t *testing.T) {
	tests := []struct {
		name      string
		out       model.ChatOut
		wantFinal bool
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "json with tool calls",
			out:       model.ChatOut{Text: `{"answer":"","tool_calls":[{"name":"search","arguments":{"query":"x"}}]}`},
			wantCalls: 1,
		},
		{
			name:      "fenced json",
			out:       model.ChatOut{Text: "```json\n{\"answer\":\"done\",\"final_answer\":true}\n```"},
			wantFinal: true,
		},
		{
			name:      "prose is a final answer",
			out:       model.ChatOut{Text: "We have three jackets."},
			wantFinal: true,
		},
		{
			name: "prose with native calls",
			out:  model.ChatOut{Text: "Let me check.", ToolCalls: []model.ToolCall{{Name: "search"}}},
		},
		{
			name:    "empty output",
			out:     model.ChatOut{},
			wantErr: true,
		},
		{
			name:    "broken json",
			out:     model.ChatOut{Text: `{"answer": }`},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseSpecialist(tt.out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if d.FinalAnswer != tt.wantFinal {
				t.Errorf("final = %v, want %v", d.FinalAnswer, tt.wantFinal)
			}
			if len(d.ToolCalls) != tt.wantCalls {
				t.Errorf("calls = %d, want %d", len(d.ToolCalls), tt.wantCalls)
			}
		})
	}
}

func newTestAgent(t *testing.T, name string, chat model.ChatModel) agentNode {
	t.Helper()
	p, err := DefaultPrompts()
	if err != nil {
		t.Fatal(err)
	}
	return agentNode{name: name, chat: chat, prompts: p}
}

func TestSpecialistNode_Update(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{
		Text:      `{"answer":"checking","tool_calls":[{"name":"check_stock","arguments":{"item_id":"B07XYZ"}}]}`,
		ToolCalls: []model.ToolCall{{ID: "native-1", Name: "reserve"}, {Name: "note"}},
	}}}
	node := &specialistNode{newTestAgent(t, WarehouseManager, chat)}

	var s State
	s.WarehouseManager = AgentState{Iteration: 1, ToolCalls: []model.ToolCall{{ID: "stale"}}}
	s.Messages = []model.Message{{Role: model.RoleUser, Content: "is B07XYZ in stock?"}}

	res := node.Run(context.Background(), s)
	if res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	au := res.Delta.Agents[WarehouseManager]
	if !au.Iteration.Set || au.Iteration.Value != 2 {
		t.Errorf("iteration = %+v", au.Iteration)
	}
	calls := au.ToolCalls.Value
	if len(calls) != 3 {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].ID != "warehouse_manager_agent-2-0" || calls[0].Input["item_id"] != "B07XYZ" {
		t.Errorf("json call = %+v", calls[0])
	}
	if calls[1].ID != "native-1" || calls[2].ID != "warehouse_manager_agent-2-2" {
		t.Errorf("native call ids = %q, %q", calls[1].ID, calls[2].ID)
	}
	if len(res.Delta.Messages) != 1 || res.Delta.Messages[0].Role != model.RoleAssistant {
		t.Errorf("messages = %+v", res.Delta.Messages)
	}
	if len(res.Delta.Agents) != 1 {
		t.Errorf("specialist touched other agents: %+v", res.Delta.Agents)
	}

	// The model saw the system prompt, the conversation and the tools.
	call := chat.Calls[0]
	if call.Messages[0].Role != model.RoleSystem || call.Messages[1].Content != "is B07XYZ in stock?" {
		t.Errorf("unexpected request %+v", call.Messages)
	}
}

func TestSpecialistNode_ModelError(t *testing.T) {
	boom := errors.New("upstream 500")
	node := &specialistNode{newTestAgent(t, ProductQA, &model.MockChatModel{Err: boom})}
	res := node.Run(context.Background(), State{})
	if !errors.Is(res.Err, boom) {
		t.Errorf("err = %v", res.Err)
	}
}

func TestCoordinatorNode_Update(t *testing.T) {
	t.Run("delegation leaves conversation and answer alone", func(t *testing.T) {
		chat := &model.MockChatModel{Responses: []model.ChatOut{{
			Text: `{"next_agent":"shopping_cart_agent","plan":[{"agent":"shopping_cart_agent","task":"add B07XYZ"}]}`,
		}}}
		node := &coordinatorNode{newTestAgent(t, Coordinator, chat)}

		res := node.Run(context.Background(), State{})
		if res.Err != nil {
			t.Fatal(res.Err)
		}
		if len(res.Delta.Messages) != 0 || res.Delta.Answer.Set {
			t.Errorf("delegation wrote conversation or answer: %+v", res.Delta)
		}
		if res.Delta.NextAgent.Value != ShoppingCart || len(res.Delta.Plan.Value) != 1 {
			t.Errorf("delegation = %+v", res.Delta)
		}
		if res.Delta.Agents[Coordinator].Iteration.Value != 1 {
			t.Errorf("iteration = %+v", res.Delta.Agents[Coordinator].Iteration)
		}
	})

	t.Run("final answer is appended", func(t *testing.T) {
		chat := &model.MockChatModel{Responses: []model.ChatOut{{
			Text: `{"final_answer":true,"answer":"Added to your cart."}`,
		}}}
		node := &coordinatorNode{newTestAgent(t, Coordinator, chat)}

		res := node.Run(context.Background(), State{Coordinator: AgentState{Iteration: 2}})
		if res.Err != nil {
			t.Fatal(res.Err)
		}
		if len(res.Delta.Messages) != 1 || res.Delta.Messages[0].Content != "Added to your cart." {
			t.Errorf("messages = %+v", res.Delta.Messages)
		}
		if res.Delta.Answer.Value != "Added to your cart." || res.Delta.Agents[Coordinator].Iteration.Value != 3 {
			t.Errorf("delta = %+v", res.Delta)
		}
	})

	t.Run("empty output fails", func(t *testing.T) {
		node := &coordinatorNode{newTestAgent(t, Coordinator, &model.MockChatModel{Responses: []model.ChatOut{{}}})}
		if res := node.Run(context.Background(), State{}); res.Err == nil {
			t.Error("expected error")
		}
	})
}

func TestDescribeTurn(t *testing.T) {
	got := describeTurn("Let me look.", []model.ToolCall{{ID: "a-1-0", Name: "search", Input: map[string]interface{}{"query": "jacket"}}})
	want := "Let me look.\nCalling search (call a-1-0) with {\"query\":\"jacket\"}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if describeTurn("", nil) != "" {
		t.Error("empty turn should render empty")
	}
}
