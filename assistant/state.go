// Package assistant wires the shopping assistant's agents into a graph and
// runs it per conversation thread.
//
// A coordinator delegates to three specialists (product Q&A, shopping cart,
// warehouse manager). Each specialist loops with its own tool node until it
// declares a final answer or exhausts its iteration cap; the coordinator then
// decides whether to delegate again or finish.
package assistant

import (
	"slices"

	"github.com/dshills/shopagent/graph/model"
)

// Agent names double as graph node names.
const (
	Coordinator      = "coordinator_agent"
	ProductQA        = "product_qa_agent"
	ShoppingCart     = "shopping_cart_agent"
	WarehouseManager = "warehouse_manager_agent"
)

// Specialists lists the delegate agents in graph declaration order.
var Specialists = []string{ProductQA, ShoppingCart, WarehouseManager}

// IsSpecialist reports whether name is a recognized delegate.
func IsSpecialist(name string) bool {
	return slices.Contains(Specialists, name)
}

// State is the record threaded through every super-step of a thread.
type State struct {
	ThreadID string `json:"thread_id"`
	TraceID  string `json:"trace_id"`
	UserID   string `json:"user_id,omitempty"`
	CartID   string `json:"cart_id,omitempty"`

	// Messages is the conversation. It only grows.
	Messages []model.Message `json:"messages"`

	// Answer is the latest answer produced by any agent.
	Answer string `json:"answer"`

	// References are the catalog items agents cited, in citation order.
	References []Reference `json:"references"`

	// Plan and NextAgent are the coordinator's latest delegation decision.
	Plan      []Delegation `json:"plan"`
	NextAgent string       `json:"next_agent"`

	Coordinator      AgentState `json:"coordinator_agent"`
	ProductQA        AgentState `json:"product_qa_agent"`
	ShoppingCart     AgentState `json:"shopping_cart_agent"`
	WarehouseManager AgentState `json:"warehouse_manager_agent"`
}

// AgentState is the per-agent sub-record.
type AgentState struct {
	// Iteration counts executions of the agent's node in the current run.
	Iteration int `json:"iteration"`

	// FinalAnswer is set when the agent declares it is done.
	FinalAnswer bool `json:"final_answer"`

	// ToolCalls are the calls requested on the agent's last turn.
	ToolCalls []model.ToolCall `json:"tool_calls,omitempty"`

	// AvailableTools describes the agent's tools. Written once per thread.
	AvailableTools []model.ToolSpec `json:"available_tools,omitempty"`
}

// Delegation is one entry of the coordinator's plan.
type Delegation struct {
	Agent string `json:"agent"`
	Task  string `json:"task"`
}

// Reference is a catalog item an agent used to answer.
type Reference struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Agent returns the sub-record of the named agent, or nil for unknown names.
func (s *State) Agent(name string) *AgentState {
	switch name {
	case Coordinator:
		return &s.Coordinator
	case ProductQA:
		return &s.ProductQA
	case ShoppingCart:
		return &s.ShoppingCart
	case WarehouseManager:
		return &s.WarehouseManager
	}
	return nil
}
