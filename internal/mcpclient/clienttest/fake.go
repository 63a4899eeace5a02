// Package clienttest provides a configurable fake MCP client for tests.
package clienttest

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// FakeClient implements mcpclient.MCPClient with per-operation function
// hooks. Unset hooks return zero values, so tests only configure what they
// exercise.
type FakeClient struct {
	InitializeFunc    func(ctx context.Context) error
	CloseFunc         func() error
	ListToolsFunc     func(ctx context.Context) ([]mcp.Tool, error)
	CallToolFunc      func(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	ListResourcesFunc func(ctx context.Context) ([]mcp.Resource, error)
	ReadResourceFunc  func(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
	ListPromptsFunc   func(ctx context.Context) ([]mcp.Prompt, error)
	GetPromptFunc     func(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error)
	PingFunc          func(ctx context.Context) error

	// Closed counts Close invocations, for lifecycle assertions.
	Closed int
}

func (f *FakeClient) Initialize(ctx context.Context) error {
	if f.InitializeFunc != nil {
		return f.InitializeFunc(ctx)
	}
	return nil
}

func (f *FakeClient) Close() error {
	f.Closed++
	if f.CloseFunc != nil {
		return f.CloseFunc()
	}
	return nil
}

func (f *FakeClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if f.ListToolsFunc != nil {
		return f.ListToolsFunc(ctx)
	}
	return nil, nil
}

func (f *FakeClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if f.CallToolFunc != nil {
		return f.CallToolFunc(ctx, name, args)
	}
	return &mcp.CallToolResult{}, nil
}

func (f *FakeClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	if f.ListResourcesFunc != nil {
		return f.ListResourcesFunc(ctx)
	}
	return nil, nil
}

func (f *FakeClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if f.ReadResourceFunc != nil {
		return f.ReadResourceFunc(ctx, uri)
	}
	return &mcp.ReadResourceResult{}, nil
}

func (f *FakeClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	if f.ListPromptsFunc != nil {
		return f.ListPromptsFunc(ctx)
	}
	return nil, nil
}

func (f *FakeClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	if f.GetPromptFunc != nil {
		return f.GetPromptFunc(ctx, name, args)
	}
	return &mcp.GetPromptResult{}, nil
}

func (f *FakeClient) Ping(ctx context.Context) error {
	if f.PingFunc != nil {
		return f.PingFunc(ctx)
	}
	return nil
}

// TextResult builds a tool result with a single text content block.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

// ErrorResult builds a tool result flagged as an application-level failure.
func ErrorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

// Tool builds a minimal tool descriptor with an object input schema.
func Tool(name, description string, properties map[string]interface{}, required ...string) mcp.Tool {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
	}
}

// StringProperty builds a string-typed schema property.
func StringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}
