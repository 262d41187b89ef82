// Package google provides a ChatModel adapter for the Google Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/shopagent/graph/model"
)

// DefaultModel is used when NewChatModel receives an empty model name.
const DefaultModel = "gemini-2.0-flash"

// ChatModel implements model.ChatModel for Google's Gemini API.
//
// System messages become the model's SystemInstruction; the remaining
// conversation is replayed as chat history with the last message sent as
// the new turn. Responses blocked by safety filters are reported as
// *SafetyFilterError.
type ChatModel struct {
	modelName   string
	jsonMode    bool
	temperature *float32
	generate    generateFunc
}

// generateFunc performs one request. Tests substitute a fake.
type generateFunc func(ctx context.Context, req request) (*genai.GenerateContentResponse, error)

// request is a provider-shaped conversation.
type request struct {
	system  *genai.Content
	history []*genai.Content
	last    []genai.Part
	tools   []*genai.Tool
}

// Option configures a ChatModel.
type Option func(*ChatModel)

// WithJSONMode asks Gemini to answer with application/json.
func WithJSONMode() Option {
	return func(m *ChatModel) { m.jsonMode = true }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(m *ChatModel) { m.temperature = &t }
}

// NewChatModel creates a new Google ChatModel.
//
// The genai client is created lazily per call so a ChatModel holds no
// open connection between agent steps.
func NewChatModel(apiKey, modelName string, opts ...Option) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	m := &ChatModel{modelName: modelName}
	for _, opt := range opts {
		opt(m)
	}
	m.generate = m.sdkGenerate(apiKey)
	return m
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	req, err := buildRequest(messages, tools)
	if err != nil {
		return model.ChatOut{}, err
	}

	resp, err := m.generate(ctx, req)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return model.ChatOut{}, newSafetyFilterError(blocked)
		}
		return model.ChatOut{}, fmt.Errorf("google: %w", err)
	}

	out := convertResponse(resp)
	out.Model = m.modelName
	return out, nil
}

func (m *ChatModel) sdkGenerate(apiKey string) generateFunc {
	return func(ctx context.Context, req request) (*genai.GenerateContentResponse, error) {
		if apiKey == "" {
			return nil, errors.New("google API key is required")
		}
		client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create Google client: %w", err)
		}
		defer func() { _ = client.Close() }()

		gm := client.GenerativeModel(m.modelName)
		gm.SystemInstruction = req.system
		gm.Tools = req.tools
		if m.jsonMode {
			gm.ResponseMIMEType = "application/json"
		}
		if m.temperature != nil {
			gm.SetTemperature(*m.temperature)
		}

		cs := gm.StartChat()
		cs.History = req.history
		return cs.SendMessage(ctx, req.last...)
	}
}

// buildRequest splits messages into system instruction, history and the
// final user turn.
func buildRequest(messages []model.Message, tools []model.ToolSpec) (request, error) {
	var req request
	var systemParts []genai.Part
	var turns []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemParts = append(systemParts, genai.Text(msg.Content))
		case model.RoleAssistant:
			if msg.Content != "" {
				turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
			}
		case model.RoleTool:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(model.ToolResultText(msg))}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(turns) == 0 {
		return request{}, errors.New("google: at least one non-system message is required")
	}

	if len(systemParts) > 0 {
		req.system = &genai.Content{Parts: systemParts}
	}
	last := turns[len(turns)-1]
	if last.Role != "user" {
		// Gemini expects the new turn to come from the user.
		last = &genai.Content{Role: "user", Parts: []genai.Part{genai.Text("Continue.")}}
		req.history = turns
	} else {
		req.history = turns[:len(turns)-1]
	}
	req.last = last.Parts
	if len(tools) > 0 {
		req.tools = convertTools(tools)
	}
	return req, nil
}

// convertTools converts our ToolSpec format to Google's format.
func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchema(tool.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchema converts a JSON schema map to genai.Schema, recursing into
// object properties and array items.
func convertSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{Type: genai.TypeObject}
	if typeStr, ok := schema["type"].(string); ok {
		result.Type = convertTypeString(typeStr)
	}
	if desc, ok := schema["description"].(string); ok {
		result.Description = desc
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		result.Properties = make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			if propMap, ok := val.(map[string]interface{}); ok {
				result.Properties[key] = convertSchema(propMap)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		result.Items = convertSchema(items)
	}
	switch required := schema["required"].(type) {
	case []string:
		result.Required = required
	case []interface{}:
		for _, v := range required {
			if s, ok := v.(string); ok {
				result.Required = append(result.Required, s)
			}
		}
	}
	return result
}

// convertResponse converts Google's response to our ChatOut format.
func convertResponse(resp *genai.GenerateContentResponse) model.ChatOut {
	out := model.ChatOut{}
	if resp == nil {
		return out
	}
	if resp.UsageMetadata != nil {
		out.Usage = model.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{Name: p.Name, Input: p.Args})
		}
	}
	return out
}

// convertTypeString converts a JSON Schema type string to genai.Type constant.
func convertTypeString(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// SafetyFilterError represents a Gemini response blocked by a safety filter.
//
//	var safetyErr *google.SafetyFilterError
//	if errors.As(err, &safetyErr) {
//	    log.Printf("content blocked: %s", safetyErr.Reason())
//	}
type SafetyFilterError struct {
	reason string
	cause  error
}

func newSafetyFilterError(err *genai.BlockedError) *SafetyFilterError {
	reason := "prompt blocked"
	if err.Candidate != nil {
		reason = err.Candidate.FinishReason.String()
	}
	return &SafetyFilterError{reason: reason, cause: err}
}

// Error implements the error interface.
func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.reason
}

// Reason returns why the content was blocked.
func (e *SafetyFilterError) Reason() string {
	return e.reason
}

// Unwrap returns the underlying SDK error.
func (e *SafetyFilterError) Unwrap() error {
	return e.cause
}
