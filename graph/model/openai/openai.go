// Package openai adapts the OpenAI chat completions API to model.ChatModel.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/shopagent/graph/model"
)

// DefaultModel is used when NewChatModel receives an empty model name.
const DefaultModel = "gpt-4.1"

// ChatModel implements model.ChatModel for OpenAI's API.
//
// Transient failures (rate limits, 5xx, network errors) are retried with a
// growing delay. With JSON mode enabled every completion is constrained to
// a JSON object, which is what the agent prompts expect.
//
//	m := openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), "gpt-4.1", openai.WithJSONMode())
//	out, err := m.Chat(ctx, messages, tools)
type ChatModel struct {
	modelName   string
	completions completionService
	maxRetries  int
	retryDelay  time.Duration
	jsonMode    bool
	temperature *float64
	clientOpts  []option.RequestOption
}

// completionService is the subset of the SDK used here. Tests substitute a fake.
type completionService interface {
	New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// Option configures a ChatModel.
type Option func(*ChatModel)

// WithJSONMode constrains responses to a single JSON object.
func WithJSONMode() Option {
	return func(m *ChatModel) { m.jsonMode = true }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(m *ChatModel) { m.temperature = &t }
}

// WithRetries sets how many times a transient failure is retried and the
// base delay between attempts.
func WithRetries(n int, delay time.Duration) Option {
	return func(m *ChatModel) {
		m.maxRetries = n
		m.retryDelay = delay
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(m *ChatModel) {
		m.clientOpts = append(m.clientOpts, option.WithBaseURL(url))
	}
}

// NewChatModel creates a new OpenAI ChatModel.
//
// An empty modelName selects DefaultModel. The SDK's own retry loop is
// disabled; retries are handled by Chat.
func NewChatModel(apiKey, modelName string, opts ...Option) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	m := &ChatModel{
		modelName:  modelName,
		maxRetries: 3,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, m.clientOpts...)
	client := sdk.NewClient(clientOpts...)
	m.completions = &client.Chat.Completions
	return m
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := m.buildParams(messages, tools)

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		completion, err := m.completions.New(ctx, params)
		if err == nil {
			return convertResponse(completion)
		}
		lastErr = err

		if !isTransientError(err) || attempt >= m.maxRetries {
			break
		}

		delay := m.retryDelay
		if isRateLimitError(err) {
			delay = m.retryDelay * time.Duration(attempt+1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		}
	}

	if !isTransientError(lastErr) {
		return model.ChatOut{}, fmt.Errorf("openai: %w", lastErr)
	}
	return model.ChatOut{}, fmt.Errorf("openai: failed after %d retries: %w", m.maxRetries, lastErr)
}

func (m *ChatModel) buildParams(messages []model.Message, tools []model.ToolSpec) sdk.ChatCompletionNewParams {
	params := sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.modelName),
		Messages: convertMessages(messages),
		Tools:    convertTools(tools),
	}
	if m.jsonMode {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: sdk.Ptr(shared.NewResponseFormatJSONObjectParam()),
		}
	}
	if m.temperature != nil {
		params.Temperature = sdk.Float(*m.temperature)
	}
	return params
}

// convertMessages maps the conversation onto chat completion messages.
// Tool results become user messages: the calls they answer were requested
// in JSON text, so there is no native call id to pair them with.
func convertMessages(messages []model.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, sdk.SystemMessage(msg.Content))
		case model.RoleAssistant:
			out = append(out, sdk.AssistantMessage(msg.Content))
		case model.RoleTool:
			out = append(out, sdk.UserMessage(model.ToolResultText(msg)))
		default:
			out = append(out, sdk.UserMessage(msg.Content))
		}
	}
	return out
}

func convertTools(tools []model.ToolSpec) []sdk.ChatCompletionToolParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]sdk.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		fn := shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: sdk.String(t.Description),
		}
		if t.Schema != nil {
			fn.Parameters = shared.FunctionParameters(t.Schema)
		}
		out = append(out, sdk.ChatCompletionToolParam{Function: fn})
	}
	return out
}

func convertResponse(c *sdk.ChatCompletion) (model.ChatOut, error) {
	if c == nil || len(c.Choices) == 0 {
		return model.ChatOut{}, errors.New("openai: empty completion")
	}
	msg := c.Choices[0].Message
	out := model.ChatOut{
		Text:  msg.Content,
		Model: c.Model,
		Usage: model.Usage{
			InputTokens:  int(c.Usage.PromptTokens),
			OutputTokens: int(c.Usage.CompletionTokens),
		},
	}
	for _, call := range msg.ToolCalls {
		var input map[string]interface{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				return model.ChatOut{}, fmt.Errorf("openai: tool call %s has invalid arguments: %w", call.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}
	return out, nil
}

// isTransientError determines if an error should trigger a retry.
func isTransientError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	// Anything that never produced an HTTP response is a network problem.
	return true
}

// isRateLimitError checks if error is a rate limit error.
func isRateLimitError(err error) bool {
	var apiErr *sdk.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
