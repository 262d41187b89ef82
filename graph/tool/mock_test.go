package tool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/shopagent/graph/tool"
)

var _ tool.Tool = (*tool.MockTool)(nil)

func TestMockTool_ResponsesInOrder(t *testing.T) {
	m := &tool.MockTool{
		ToolName: "get_formatted_items_context",
		Responses: []map[string]interface{}{
			{"text": "first"},
			{"text": "second"},
		},
	}
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		out, err := m.Call(ctx, map[string]interface{}{"query": "jacket"})
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		if out["text"] != want {
			t.Errorf("got %v, want %q", out["text"], want)
		}
	}
	if m.CallCount() != 3 {
		t.Errorf("CallCount = %d, want 3", m.CallCount())
	}

	m.Reset()
	if m.CallCount() != 0 {
		t.Errorf("CallCount after Reset = %d", m.CallCount())
	}
	out, _ := m.Call(ctx, nil)
	if out["text"] != "first" {
		t.Errorf("Reset did not rewind responses: %v", out)
	}
}

func TestMockTool_Error(t *testing.T) {
	sentinel := errors.New("warehouse offline")
	m := &tool.MockTool{ToolName: "check_stock", Err: sentinel}

	if _, err := m.Call(context.Background(), nil); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
	if m.CallCount() != 1 {
		t.Errorf("failed call not recorded")
	}
}

func TestMockTool_Spec(t *testing.T) {
	schema := map[string]interface{}{"type": "object"}
	m := &tool.MockTool{ToolName: "add_to_cart", Description: "add an item", Schema: schema}

	spec := m.Spec()
	if spec.Name != "add_to_cart" || spec.Description != "add an item" {
		t.Errorf("unexpected spec %+v", spec)
	}
	if spec.Schema["type"] != "object" {
		t.Errorf("schema not propagated: %v", spec.Schema)
	}
}

func TestMockTool_CancelledContext(t *testing.T) {
	m := &tool.MockTool{ToolName: "x"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Call(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if m.CallCount() != 0 {
		t.Errorf("cancelled call should not be recorded")
	}
}
