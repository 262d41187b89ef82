package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dshills/shopagent/graph/model"
)

// maxErrorBody caps how much of a failed response is quoted in the error.
const maxErrorBody = 512

// HTTPTool exposes a JSON-over-HTTP endpoint as a tool.
//
// The call input is POSTed as a JSON object. A JSON object response is
// returned as the output; any other 2xx body is returned under TextKey.
// Non-2xx responses become tool errors quoting the start of the body.
//
//	stock := tool.NewHTTPTool(model.ToolSpec{
//	    Name:        "check_stock",
//	    Description: "Check warehouse stock for an item id",
//	}, "http://inventory.internal/v1/stock")
type HTTPTool struct {
	spec     model.ToolSpec
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// HTTPOption configures an HTTPTool.
type HTTPOption func(*HTTPTool)

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTPTool) { h.headers[key] = value }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPTool) { h.client = c }
}

// NewHTTPTool creates a tool that calls endpoint.
func NewHTTPTool(spec model.ToolSpec, endpoint string, opts ...HTTPOption) *HTTPTool {
	h := &HTTPTool{
		spec:     spec,
		endpoint: endpoint,
		headers:  make(map[string]string),
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements Tool.
func (h *HTTPTool) Name() string { return h.spec.Name }

// Spec implements Tool.
func (h *HTTPTool) Spec() model.ToolSpec { return h.spec }

// Call implements Tool.
func (h *HTTPTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if input == nil {
		input = map[string]interface{}{}
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody] + "..."
		}
		return nil, fmt.Errorf("%s returned %d: %s", h.spec.Name, resp.StatusCode, snippet)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err == nil && out != nil {
		return out, nil
	}
	return map[string]interface{}{TextKey: string(body)}, nil
}
