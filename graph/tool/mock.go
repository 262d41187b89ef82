package tool

import (
	"context"
	"sync"

	"github.com/dshills/shopagent/graph/model"
)

// MockTool is a scripted Tool for tests. It fails with Err when set,
// otherwise serves Responses in order and keeps repeating the last one.
//
//	search := &tool.MockTool{
//	    ToolName: "get_formatted_items_context",
//	    Responses: []map[string]interface{}{
//	        {"text": "- B07XYZ: Rain shell, waterproof"},
//	    },
//	}
type MockTool struct {
	ToolName    string
	Description string
	Schema      map[string]interface{}

	Responses []map[string]interface{}
	Err       error

	// Calls records the input of every call made on a live context.
	Calls []MockToolCall

	mu     sync.Mutex
	served int
}

// MockToolCall is one recorded call.
type MockToolCall struct {
	Input map[string]interface{}
}

// Name implements Tool.
func (m *MockTool) Name() string { return m.ToolName }

// Spec implements Tool.
func (m *MockTool) Spec() model.ToolSpec {
	return model.ToolSpec{Name: m.ToolName, Description: m.Description, Schema: m.Schema}
}

// Call implements Tool.
func (m *MockTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockToolCall{Input: input})
	switch n := len(m.Responses); {
	case m.Err != nil:
		return nil, m.Err
	case n == 0:
		return map[string]interface{}{}, nil
	default:
		out := m.Responses[min(m.served, n-1)]
		m.served++
		return out, nil
	}
}

// Reset forgets recorded calls and restarts the script.
func (m *MockTool) Reset() {
	m.mu.Lock()
	m.Calls, m.served = nil, 0
	m.mu.Unlock()
}

// CallCount reports how many calls were recorded.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
