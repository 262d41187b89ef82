package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/shopagent/graph"
	"github.com/dshills/shopagent/graph/model"
)

// specialistDecision is the JSON a specialist answers with.
type specialistDecision struct {
	Answer      string         `json:"answer"`
	References  []Reference    `json:"references"`
	FinalAnswer bool           `json:"final_answer"`
	ToolCalls   []decisionCall `json:"tool_calls"`
}

type decisionCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// coordinatorDecision is the JSON the coordinator answers with.
type coordinatorDecision struct {
	NextAgent   string       `json:"next_agent"`
	Plan        []Delegation `json:"plan"`
	FinalAnswer bool         `json:"final_answer"`
	Answer      string       `json:"answer"`
}

// agentNode is the shared plumbing of every LLM-backed node: render the
// agent's prompt, call the model with the conversation, account usage.
type agentNode struct {
	name    string
	chat    model.ChatModel
	prompts *Prompts
	costs   *graph.CostTracker
}

// ask sends the conversation to the model under the agent's instructions.
func (a *agentNode) ask(ctx context.Context, s State, tools []model.ToolSpec) (model.ChatOut, map[string]interface{}, error) {
	system, err := a.prompts.Render(a.name, PromptData{
		AvailableTools: tools,
		UserID:         s.UserID,
		CartID:         s.CartID,
	})
	if err != nil {
		return model.ChatOut{}, nil, err
	}

	messages := make([]model.Message, 0, len(s.Messages)+1)
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: system})
	messages = append(messages, s.Messages...)

	out, err := a.chat.Chat(ctx, messages, tools)
	if err != nil {
		return model.ChatOut{}, nil, err
	}

	meta := map[string]interface{}{
		"agent":      a.name,
		"model":      out.Model,
		"tokens_in":  out.Usage.InputTokens,
		"tokens_out": out.Usage.OutputTokens,
	}
	if a.costs != nil {
		call := a.costs.Record(s.ThreadID, a.name, out.Model, out.Usage.InputTokens, out.Usage.OutputTokens)
		meta["cost_usd"] = call.CostUSD
	}
	return out, meta, nil
}

// specialistNode runs one turn of a specialist's tool loop.
type specialistNode struct {
	agentNode
}

func (n *specialistNode) Run(ctx context.Context, s State) graph.NodeResult[Update] {
	self := s.Agent(n.name)
	out, meta, err := n.ask(ctx, s, self.AvailableTools)
	if err != nil {
		return graph.NodeResult[Update]{Err: err}
	}

	d, err := parseSpecialist(out)
	if err != nil {
		return graph.NodeResult[Update]{Err: err}
	}

	iteration := self.Iteration + 1
	calls := make([]model.ToolCall, 0, len(d.ToolCalls))
	for i, c := range d.ToolCalls {
		calls = append(calls, model.ToolCall{
			ID:    callID(n.name, iteration, i),
			Name:  c.Name,
			Input: c.Arguments,
		})
	}
	// Native tool calls keep their provider ids.
	for i, c := range out.ToolCalls {
		if c.ID == "" {
			c.ID = callID(n.name, iteration, len(d.ToolCalls)+i)
		}
		calls = append(calls, c)
	}

	delta := Update{
		Answer:     Value(d.Answer),
		References: d.References,
		Agents: map[string]AgentUpdate{
			n.name: {
				Iteration:   Value(iteration),
				FinalAnswer: Value(d.FinalAnswer),
				ToolCalls:   Value(calls),
			},
		},
	}
	if text := describeTurn(d.Answer, calls); text != "" {
		delta.Messages = []model.Message{{Role: model.RoleAssistant, Content: text, Name: n.name}}
	}
	meta["tool_calls"] = len(calls)
	return graph.NodeResult[Update]{Delta: delta, Meta: meta}
}

// coordinatorNode decides who works next.
type coordinatorNode struct {
	agentNode
}

func (n *coordinatorNode) Run(ctx context.Context, s State) graph.NodeResult[Update] {
	out, meta, err := n.ask(ctx, s, nil)
	if err != nil {
		return graph.NodeResult[Update]{Err: err}
	}

	var d coordinatorDecision
	if err := model.DecodeJSON(out.Text, &d); err != nil {
		if !errors.Is(err, model.ErrNoJSON) || strings.TrimSpace(out.Text) == "" {
			return graph.NodeResult[Update]{Err: fmt.Errorf("coordinator decision: %w", err)}
		}
		// Plain prose from the coordinator is its answer to the customer.
		d = coordinatorDecision{FinalAnswer: true, Answer: strings.TrimSpace(out.Text)}
	}

	delta := Update{
		Plan:      Value(d.Plan),
		NextAgent: Value(d.NextAgent),
		Agents: map[string]AgentUpdate{
			Coordinator: {
				Iteration:   Value(s.Coordinator.Iteration + 1),
				FinalAnswer: Value(d.FinalAnswer),
			},
		},
	}
	if d.Answer != "" {
		delta.Answer = Value(d.Answer)
	}
	if d.FinalAnswer && d.Answer != "" {
		delta.Messages = []model.Message{{Role: model.RoleAssistant, Content: d.Answer, Name: Coordinator}}
	}
	meta["next_agent"] = d.NextAgent
	return graph.NodeResult[Update]{Delta: delta, Meta: meta}
}

// parseSpecialist decodes a specialist answer. Prose without JSON is taken
// as a final answer unless the provider returned native tool calls.
func parseSpecialist(out model.ChatOut) (specialistDecision, error) {
	var d specialistDecision
	err := model.DecodeJSON(out.Text, &d)
	switch {
	case err == nil:
		return d, nil
	case errors.Is(err, model.ErrNoJSON) && len(out.ToolCalls) > 0:
		return specialistDecision{Answer: strings.TrimSpace(out.Text)}, nil
	case errors.Is(err, model.ErrNoJSON) && strings.TrimSpace(out.Text) != "":
		return specialistDecision{Answer: strings.TrimSpace(out.Text), FinalAnswer: true}, nil
	default:
		return d, fmt.Errorf("specialist decision: %w", err)
	}
}

// callID derives a stable id so a resumed run names calls identically.
func callID(agent string, iteration, index int) string {
	return fmt.Sprintf("%s-%d-%d", agent, iteration, index)
}

// describeTurn renders an agent turn for the conversation.
func describeTurn(answer string, calls []model.ToolCall) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(answer))
	for _, c := range calls {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		args, err := json.Marshal(c.Input)
		if err != nil || c.Input == nil {
			args = []byte("{}")
		}
		fmt.Fprintf(&b, "Calling %s (call %s) with %s", c.Name, c.ID, args)
	}
	return b.String()
}
