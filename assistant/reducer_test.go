package assistant

import (
	"testing"

	"github.com/dshills/shopagent/graph/model"
)

func TestMergePolicies_Table(t *testing.T) {
	want := map[string]Policy{
		"thread_id":                        SetOnce,
		"trace_id":                         Replace,
		"messages":                         Append,
		"answer":                           Replace,
		"references":                       Append,
		"plan":                             Replace,
		"next_agent":                       Replace,
		"coordinator_agent.iteration":      Replace,
		"product_qa_agent.final_answer":    Replace,
		"shopping_cart_agent.tool_calls":   Replace,

		"warehouse_manager_agent.available_tools": SetOnce,
	}
	got := make(map[string]Policy, len(MergePolicies))
	for _, p := range MergePolicies {
		if _, dup := got[p.Path]; dup {
			t.Errorf("duplicate policy for %s", p.Path)
		}
		got[p.Path] = p.Policy
	}
	for path, policy := range want {
		if got[path] != policy {
			t.Errorf("%s: policy %v, want %v", path, got[path], policy)
		}
	}
	if len(MergePolicies) != 9+4*4 {
		t.Errorf("unexpected table size %d", len(MergePolicies))
	}
}

func TestReduce_ReplaceAndAppend(t *testing.T) {
	prev := State{
		Answer:     "old",
		Messages:   []model.Message{{Role: model.RoleUser, Content: "hi"}},
		References: []Reference{{ID: "A"}},
		Plan:       []Delegation{{Agent: ProductQA, Task: "first"}},
	}

	got := Reduce(prev, Update{
		Answer:     Value("new"),
		Messages:   []model.Message{{Role: model.RoleAssistant, Content: "hello"}},
		References: []Reference{{ID: "A"}, {ID: "B"}},
		Plan:       Value([]Delegation{{Agent: ShoppingCart, Task: "second"}}),
	})

	if got.Answer != "new" {
		t.Errorf("answer = %q", got.Answer)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "hello" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if len(got.References) != 3 || got.References[0].ID != "A" || got.References[2].ID != "B" {
		t.Errorf("references should keep duplicates in order: %+v", got.References)
	}
	if len(got.Plan) != 1 || got.Plan[0].Agent != ShoppingCart {
		t.Errorf("plan should be replaced wholesale: %+v", got.Plan)
	}
}

func TestReduce_UnsetFieldsUntouched(t *testing.T) {
	prev := State{Answer: "keep", NextAgent: ProductQA, Plan: []Delegation{{Agent: ProductQA}}}
	prev.ProductQA.Iteration = 2

	got := Reduce(prev, Update{})

	if got.Answer != "keep" || got.NextAgent != ProductQA || len(got.Plan) != 1 || got.ProductQA.Iteration != 2 {
		t.Errorf("empty update changed state: %+v", got)
	}
}

func TestReduce_ExplicitEmptyValuesReplace(t *testing.T) {
	prev := State{Answer: "old", Plan: []Delegation{{Agent: ProductQA}}}
	prev.ProductQA.ToolCalls = []model.ToolCall{{Name: "search"}}

	got := Reduce(prev, Update{
		Answer: Value(""),
		Plan:   Value([]Delegation(nil)),
		Agents: map[string]AgentUpdate{ProductQA: {ToolCalls: Value([]model.ToolCall(nil))}},
	})

	if got.Answer != "" || len(got.Plan) != 0 || len(got.ProductQA.ToolCalls) != 0 {
		t.Errorf("set-to-empty should replace: %+v", got)
	}
}

func TestReduce_PerAgentRecords(t *testing.T) {
	got := Reduce(State{}, Update{Agents: map[string]AgentUpdate{
		ShoppingCart: {
			Iteration:   Value(1),
			FinalAnswer: Value(true),
			ToolCalls:   Value([]model.ToolCall{{ID: "c1", Name: "add_to_cart"}}),
		},
		"pricing_agent": {Iteration: Value(9)},
	}})

	if got.ShoppingCart.Iteration != 1 || !got.ShoppingCart.FinalAnswer || len(got.ShoppingCart.ToolCalls) != 1 {
		t.Errorf("cart record = %+v", got.ShoppingCart)
	}
	for _, name := range []string{Coordinator, ProductQA, WarehouseManager} {
		if got.Agent(name).Iteration != 0 {
			t.Errorf("%s touched by another agent's update", name)
		}
	}
}

func TestReduce_SetOnce(t *testing.T) {
	tools := []model.ToolSpec{{Name: ItemsSearchTool}}
	s := Reduce(State{}, Update{
		ThreadID: Value("t-1"),
		Agents:   map[string]AgentUpdate{ProductQA: {AvailableTools: Value(tools)}},
	})
	s = Reduce(s, Update{
		ThreadID: Value("t-2"),
		Agents:   map[string]AgentUpdate{ProductQA: {AvailableTools: Value([]model.ToolSpec{{Name: "other"}})}},
	})

	if s.ThreadID != "t-1" {
		t.Errorf("thread id overwritten: %q", s.ThreadID)
	}
	if len(s.ProductQA.AvailableTools) != 1 || s.ProductQA.AvailableTools[0].Name != ItemsSearchTool {
		t.Errorf("available tools overwritten: %+v", s.ProductQA.AvailableTools)
	}
}

func TestReduce_NoAliasing(t *testing.T) {
	plan := []Delegation{{Agent: ProductQA, Task: "a"}}
	s := Reduce(State{}, Update{Plan: Value(plan)})
	plan[0].Task = "mutated"
	if s.Plan[0].Task != "a" {
		t.Error("state aliases the update's plan")
	}

	base := State{Messages: make([]model.Message, 1, 8)}
	left := Reduce(base, Update{Messages: []model.Message{{Content: "left"}}})
	right := Reduce(base, Update{Messages: []model.Message{{Content: "right"}}})
	if left.Messages[1].Content != "left" || right.Messages[1].Content != "right" {
		t.Error("appends share a backing array")
	}
}

func TestPolicy_String(t *testing.T) {
	for p, want := range map[Policy]string{Replace: "replace", Append: "append", SetOnce: "set-once", Policy(42): "unknown"} {
		if p.String() != want {
			t.Errorf("%d: %q", p, p.String())
		}
	}
}
