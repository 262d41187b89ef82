package model

import (
	"context"
	"errors"
	"testing"
)

func TestMockChatModel_Sequence(t *testing.T) {
	m := &MockChatModel{Responses: []ChatOut{{Text: "first"}, {Text: "second"}}}
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		out, err := m.Chat(ctx, []Message{{Role: RoleUser, Content: "hi"}}, nil)
		if err != nil {
			t.Fatalf("Chat: %v", err)
		}
		if out.Text != want {
			t.Errorf("got %q, want %q", out.Text, want)
		}
	}
	if m.CallCount() != 3 {
		t.Errorf("CallCount = %d", m.CallCount())
	}

	m.Reset()
	if out, _ := m.Chat(ctx, nil, nil); out.Text != "first" || m.CallCount() != 1 {
		t.Errorf("Reset did not rewind: %q, %d calls", out.Text, m.CallCount())
	}
}

func TestMockChatModel_HandlerAndErrors(t *testing.T) {
	m := &MockChatModel{Handler: func(msgs []Message, tools []ToolSpec) (ChatOut, error) {
		return ChatOut{Text: msgs[0].Content, Usage: Usage{InputTokens: len(tools)}}, nil
	}}
	out, err := m.Chat(context.Background(), []Message{{Role: RoleSystem, Content: "echo"}}, []ToolSpec{{Name: "a"}})
	if err != nil || out.Text != "echo" || out.Usage.InputTokens != 1 {
		t.Errorf("handler response = %+v, %v", out, err)
	}

	boom := errors.New("api down")
	m = &MockChatModel{Err: boom}
	if _, err := m.Chat(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&MockChatModel{}).Chat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx err = %v", err)
	}
}

func TestMockChatModel_RecordsCopies(t *testing.T) {
	m := &MockChatModel{}
	msgs := []Message{{Role: RoleUser, Content: "original"}}
	_, _ = m.Chat(context.Background(), msgs, nil)
	msgs[0].Content = "changed"
	if m.Calls[0].Messages[0].Content != "original" {
		t.Error("recorded call aliases caller slice")
	}
}
