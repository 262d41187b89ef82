// Package model provides LLM integration adapters.
//
// Agents talk to a provider through ChatModel. Adapters live in the
// openai, anthropic and google sub-packages; MockChatModel scripts
// responses for tests and offline runs.
package model

import "context"

// ChatModel defines the interface for LLM chat providers.
//
// Implementations should:
//   - Convert the standard Message format to the provider's format.
//   - Parse the provider response back to ChatOut, including token usage.
//   - Respect context cancellation and timeouts.
//
// Example:
//
//	out, err := m.Chat(ctx, []model.Message{
//	    {Role: model.RoleSystem, Content: "Answer in JSON."},
//	    {Role: model.RoleUser, Content: "find me a waterproof jacket"},
//	}, tools)
type ChatModel interface {
	// Chat sends messages to the LLM and returns the response.
	//
	// tools lists the tools the model may request (nil if none). Tool
	// requests come back either as native ToolCalls or inside a JSON
	// answer, depending on the provider and prompt.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role identifies the message sender. Use the Role* constants.
	Role string `json:"role"`

	// Content contains the message text.
	Content string `json:"content"`

	// Name is the tool that produced a RoleTool message.
	Name string `json:"name,omitempty"`

	// ToolCallID links a RoleTool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Standard role constants for LLM conversations.
const (
	// RoleSystem indicates a system message that sets context or instructions.
	RoleSystem = "system"

	// RoleUser indicates a message from the human user.
	RoleUser = "user"

	// RoleAssistant indicates a response from the LLM.
	RoleAssistant = "assistant"

	// RoleTool indicates the result of a tool call.
	RoleTool = "tool"
)

// ToolSpec describes a tool that an LLM can call.
//
// The Schema field follows JSON Schema format and describes the expected
// input parameters.
type ToolSpec struct {
	// Name uniquely identifies the tool.
	Name string `json:"name"`

	// Description explains what the tool does.
	// The LLM uses this to decide when to call the tool.
	Description string `json:"description"`

	// Schema defines the tool's input parameters using JSON Schema format.
	Schema map[string]interface{} `json:"schema,omitempty"`
}

// ChatOut represents the output from an LLM chat completion.
type ChatOut struct {
	// Text contains the LLM's generated response.
	Text string

	// ToolCalls contains tools the LLM wants to invoke through the
	// provider's native tool calling.
	ToolCalls []ToolCall

	// Usage reports the tokens consumed by the call.
	Usage Usage

	// Model is the model that served the request, as reported by the provider.
	Model string
}

// Usage is the token accounting of one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ToolCall represents a request from the LLM to invoke a specific tool.
type ToolCall struct {
	// ID identifies the call. Providers without call ids leave it empty.
	ID string `json:"id,omitempty"`

	// Name identifies which tool to call.
	Name string `json:"name"`

	// Input contains the parameters for the tool call.
	Input map[string]interface{} `json:"arguments,omitempty"`
}

// ToolResultText renders a RoleTool message as plain text for providers
// that only accept tool results paired with their own native calls.
func ToolResultText(m Message) string {
	if m.ToolCallID == "" {
		return "Tool " + m.Name + " returned:\n" + m.Content
	}
	return "Tool " + m.Name + " (call " + m.ToolCallID + ") returned:\n" + m.Content
}
