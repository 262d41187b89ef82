package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dshills/shopagent/graph/model"
)

// StructuredKey is the output key holding an MCP tool's structured content
// when it is not a JSON object.
const StructuredKey = "structured"

// ConnectMCP opens a client session to an MCP server over the streamable
// HTTP transport.
func ConnectMCP(ctx context.Context, clientName, version, endpoint string, httpClient *http.Client) (*mcp.ClientSession, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: version}, nil)
	transport := &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: httpClient}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to MCP server %s: %w", endpoint, err)
	}
	return session, nil
}

// MCPTool is a tool served by an MCP server.
type MCPTool struct {
	session *mcp.ClientSession
	spec    model.ToolSpec
}

// DiscoverMCPTools lists the tools a session offers. The descriptors are
// read once; the returned tools keep using the session for calls.
func DiscoverMCPTools(ctx context.Context, session *mcp.ClientSession) ([]*MCPTool, error) {
	var tools []*MCPTool
	for t, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("list MCP tools: %w", err)
		}
		schema, err := schemaMap(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name, err)
		}
		tools = append(tools, &MCPTool{
			session: session,
			spec:    model.ToolSpec{Name: t.Name, Description: t.Description, Schema: schema},
		})
	}
	return tools, nil
}

// Name implements Tool.
func (t *MCPTool) Name() string { return t.spec.Name }

// Spec implements Tool.
func (t *MCPTool) Spec() model.ToolSpec { return t.spec }

// Call implements Tool. Structured content, when present, is the output;
// otherwise text content is joined under TextKey. A result flagged IsError
// becomes an error carrying its text.
func (t *MCPTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	res, err := t.session.CallTool(ctx, &mcp.CallToolParams{Name: t.spec.Name, Arguments: input})
	if err != nil {
		return nil, fmt.Errorf("call MCP tool %s: %w", t.spec.Name, err)
	}

	var parts []string
	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, errors.New(text)
	}

	if res.StructuredContent != nil {
		structured, err := schemaMap(res.StructuredContent)
		if err == nil && structured != nil {
			return structured, nil
		}
		return map[string]interface{}{StructuredKey: res.StructuredContent}, nil
	}
	return map[string]interface{}{TextKey: text}, nil
}

// schemaMap normalizes an arbitrary JSON value into a map.
func schemaMap(v interface{}) (map[string]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
