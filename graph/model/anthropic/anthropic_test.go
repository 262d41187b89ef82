package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/shopagent/graph/model"
)

type fakeMessages struct {
	resp   *sdk.Message
	err    error
	params []sdk.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.params = append(f.params, body)
	return f.resp, f.err
}

func message(t *testing.T, raw string) *sdk.Message {
	t.Helper()
	var m sdk.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return &m
}

func TestNewChatModel_Defaults(t *testing.T) {
	m := NewChatModel("key", "", WithMaxTokens(512))
	if m.modelName != DefaultModel || m.maxTokens != 512 || m.messages == nil {
		t.Errorf("unexpected model: %+v", m)
	}
}

func TestChat_SystemPromptAndUsage(t *testing.T) {
	fake := &fakeMessages{resp: message(t, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
		"content": [{"type": "text", "text": "{\"answer\":\"Here are three jackets\"}"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 200, "output_tokens": 40}
	}`)}
	m := NewChatModel("key", "", WithTemperature(0.2))
	m.messages = fake

	out, err := m.Chat(context.Background(), []model.Message{
		{Role: model.RoleSystem, Content: "You are a shopping assistant."},
		{Role: model.RoleSystem, Content: "Reply in JSON."},
		{Role: model.RoleUser, Content: "find me a waterproof jacket"},
		{Role: model.RoleAssistant, Content: ""},
		{Role: model.RoleTool, Name: "search", ToolCallID: "c-1", Content: "3 items"},
	}, []model.ToolSpec{{
		Name:        "search",
		Description: "Search the catalog",
		Schema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
			"required":   []interface{}{"query"},
		},
	}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != `{"answer":"Here are three jackets"}` || out.Usage.InputTokens != 200 || out.Usage.OutputTokens != 40 {
		t.Errorf("unexpected output: %+v", out)
	}

	p := fake.params[0]
	if len(p.System) != 1 || p.System[0].Text != "You are a shopping assistant.\n\nReply in JSON." {
		t.Errorf("system = %+v", p.System)
	}
	if len(p.Messages) != 2 {
		t.Fatalf("empty assistant turn should be dropped, got %d messages", len(p.Messages))
	}
	if p.Messages[1].Role != sdk.MessageParamRoleUser {
		t.Errorf("tool result should be sent as user text, got role %q", p.Messages[1].Role)
	}
	if len(p.Tools) != 1 || p.Tools[0].OfTool == nil || p.Tools[0].OfTool.Name != "search" {
		t.Fatalf("tools = %+v", p.Tools)
	}
	if got := p.Tools[0].OfTool.InputSchema.Required; len(got) != 1 || got[0] != "query" {
		t.Errorf("required = %v", got)
	}
	if !p.Temperature.Valid() {
		t.Error("temperature not set")
	}
}

func TestChat_ToolUse(t *testing.T) {
	fake := &fakeMessages{resp: message(t, `{
		"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
		"content": [
			{"type": "text", "text": "Searching."},
			{"type": "tool_use", "id": "toolu_1", "name": "search", "input": {"query": "jacket"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`)}
	m := NewChatModel("key", "")
	m.messages = fake

	out, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "q"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "Searching." || len(out.ToolCalls) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if c := out.ToolCalls[0]; c.ID != "toolu_1" || c.Input["query"] != "jacket" {
		t.Errorf("tool call = %+v", c)
	}
}

func TestChat_Errors(t *testing.T) {
	boom := errors.New("overloaded")
	m := NewChatModel("key", "")
	m.messages = &fakeMessages{err: boom}

	if _, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "q"}}, nil); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if _, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleSystem, Content: "only system"}}, nil); err == nil {
		t.Error("expected error for system-only conversation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: "q"}}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
