package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/shopagent/graph/model"
	"github.com/dshills/shopagent/graph/store"
	"github.com/dshills/shopagent/graph/tool"
)

// agentOf identifies the calling agent from its system prompt.
func agentOf(messages []model.Message) string {
	if len(messages) == 0 || messages[0].Role != model.RoleSystem {
		return ""
	}
	system := messages[0].Content
	switch {
	case strings.Contains(system, "coordinator of a shopping assistant"):
		return Coordinator
	case strings.Contains(system, "product expert"):
		return ProductQA
	case strings.Contains(system, "shopping cart"):
		return ShoppingCart
	case strings.Contains(system, "warehouse inventory"):
		return WarehouseManager
	}
	return ""
}

func last(messages []model.Message) model.Message {
	if len(messages) == 0 {
		return model.Message{}
	}
	return messages[len(messages)-1]
}

func reply(v interface{}) model.ChatOut {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return model.ChatOut{Text: string(b), Model: "gpt-4.1", Usage: model.Usage{InputTokens: 100, OutputTokens: 20}}
}

// jacketModel scripts the waterproof jacket conversation. Every answer is a
// function of the conversation so a resumed run gets the same responses.
func jacketModel() *model.MockChatModel {
	return &model.MockChatModel{Handler: func(messages []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
		prev := last(messages)
		switch agentOf(messages) {
		case Coordinator:
			if prev.Role == model.RoleAssistant && prev.Name == ProductQA {
				return reply(map[string]interface{}{
					"next_agent":   "",
					"plan":         []interface{}{},
					"final_answer": true,
					"answer":       "I recommend the B07XYZ rain shell.",
				}), nil
			}
			return reply(map[string]interface{}{
				"next_agent": ProductQA,
				"plan":       []map[string]string{{"agent": ProductQA, "task": "find waterproof jackets"}},
			}), nil
		case ProductQA:
			if prev.Role == model.RoleTool {
				return reply(map[string]interface{}{
					"answer":       "The B07XYZ rain shell is fully waterproof.",
					"references":   []map[string]string{{"id": "B07XYZ", "description": "Rain shell"}},
					"final_answer": true,
				}), nil
			}
			return reply(map[string]interface{}{
				"tool_calls": []map[string]interface{}{
					{"name": ItemsSearchTool, "arguments": map[string]interface{}{"query": "waterproof jacket"}},
				},
			}), nil
		}
		return model.ChatOut{}, errors.New("unexpected agent")
	}}
}

func itemsTool() *tool.MockTool {
	return &tool.MockTool{
		ToolName:    ItemsSearchTool,
		Description: "Search the catalog",
		Schema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
			"required":   []interface{}{"query"},
		},
		Responses: []map[string]interface{}{
			{"text": "- ID: B07XYZ, rating: 4.5, description: Rain shell, waterproof"},
		},
	}
}

func registry(t *testing.T, tools ...tool.Tool) *tool.Registry {
	t.Helper()
	r, err := tool.NewRegistry(tools...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func newAssistant(t *testing.T, chat model.ChatModel, st store.Store[State], opts ...Option) *Assistant {
	t.Helper()
	a, err := New(chat, st, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

// collect drains a notification channel.
func collect(ch <-chan Notification) (progress []string, final []Notification) {
	for n := range ch {
		if n.Kind == KindProgress {
			progress = append(progress, n.Progress)
			continue
		}
		final = append(final, n)
	}
	return progress, final
}

func run(t *testing.T, a *Assistant, req Request) ([]string, Notification) {
	t.Helper()
	ch, err := a.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	progress, final := collect(ch)
	if len(final) != 1 {
		t.Fatalf("expected exactly one terminal notification, got %d", len(final))
	}
	return progress, final[0]
}

// failingStore fails the Nth save (1-based) while failAt is positive.
type failingStore struct {
	*store.MemStore[State]
	mu     sync.Mutex
	saves  int
	failAt int
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) Save(ctx context.Context, cp store.Checkpoint[State]) error {
	f.mu.Lock()
	f.saves++
	fail := f.failAt > 0 && f.saves == f.failAt
	f.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return f.MemStore.Save(ctx, cp)
}

func (f *failingStore) disarm() {
	f.mu.Lock()
	f.failAt = 0
	f.mu.Unlock()
}

func ptr[T any](v T) *T { return &v }
