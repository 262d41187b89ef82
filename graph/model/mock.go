package model

import (
	"context"
	"sync"
)

// MockChatModel is a scripted ChatModel for tests.
//
// Precedence per call: Err, then Handler, then Responses. Responses are
// served in order and the last one repeats once the script runs out.
//
//	mock := &model.MockChatModel{
//	    Responses: []model.ChatOut{
//	        {Text: `{"next_agent":"product_qa_agent","plan":[...]}`},
//	        {Text: `{"final_answer":true,"answer":"..."}`},
//	    },
//	}
type MockChatModel struct {
	Responses []ChatOut
	Handler   func(messages []Message, tools []ToolSpec) (ChatOut, error)
	Err       error

	// Calls holds a copy of every request that reached the model.
	Calls []MockChatCall

	mu     sync.Mutex
	served int
}

// MockChatCall is one recorded request.
type MockChatCall struct {
	Messages []Message
	Tools    []ToolSpec
}

// Chat implements ChatModel. Requests on a cancelled context are rejected
// without being recorded.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return ChatOut{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockChatCall{
		Messages: append([]Message(nil), messages...),
		Tools:    append([]ToolSpec(nil), tools...),
	})
	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if m.Handler != nil {
		return m.Handler(messages, tools)
	}
	if n := len(m.Responses); n > 0 {
		out := m.Responses[min(m.served, n-1)]
		m.served++
		return out, nil
	}
	return ChatOut{}, nil
}

// Reset forgets recorded calls and restarts the script.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	m.Calls, m.served = nil, 0
	m.mu.Unlock()
}

// CallCount reports how many requests were recorded.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
