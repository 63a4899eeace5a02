package mcpclient

import (
	"context"
	"fmt"

	"conduit/internal/mcperr"
	"conduit/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// SSEClient implements the MCPClient interface using the Server-Sent Events
// transport. Kept for remote servers that predate streamable HTTP.
type SSEClient struct {
	baseClient
	url     string
	headers map[string]string
}

// NewSSEClient creates an SSE-based MCP client with optional custom headers.
func NewSSEClient(server, url string, headers map[string]string) *SSEClient {
	if headers == nil {
		headers = make(map[string]string)
	}
	c := &SSEClient{
		url:     url,
		headers: headers,
	}
	c.server = server
	return c
}

// Initialize opens the event-stream connection and performs the protocol
// handshake. Connection failure or a non-success status surfaces as a
// *mcperr.ConnectionError.
func (c *SSEClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	logging.Debug("SSEClient", "Connecting to %s for server %s", c.url, c.server)

	var opts []transport.ClientOption
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHeaders(c.headers))
		logging.Debug("SSEClient", "Configured %d custom headers", len(c.headers))
	}

	mcpClient, err := client.NewSSEMCPClient(c.url, opts...)
	if err != nil {
		return &mcperr.ConnectionError{Server: c.server, Err: fmt.Errorf("create SSE client: %w", err)}
	}

	initCtx, cancel := withInitTimeout(ctx)
	defer cancel()

	if err := mcpClient.Start(initCtx); err != nil {
		return &mcperr.ConnectionError{Server: c.server, Err: fmt.Errorf("start SSE transport: %w", err)}
	}

	initResult, err := mcpClient.Initialize(initCtx, newInitializeRequest())
	if err != nil {
		mcpClient.Close()
		return &mcperr.ConnectionError{Server: c.server, Err: fmt.Errorf("initialize MCP protocol: %w", err)}
	}

	c.client = mcpClient
	c.connected = true

	logging.Debug("SSEClient", "Connected to server %s: %s %s",
		c.server, initResult.ServerInfo.Name, initResult.ServerInfo.Version)
	return nil
}

// Close cleanly shuts down the client connection.
func (c *SSEClient) Close() error {
	return c.closeClient()
}

// ListTools returns all available tools from the server.
func (c *SSEClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return c.listTools(ctx)
}

// CallTool executes a specific tool and returns the result.
func (c *SSEClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

// ListResources returns all available resources from the server.
func (c *SSEClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

// ReadResource retrieves a specific resource.
func (c *SSEClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}

// ListPrompts returns all available prompts from the server.
func (c *SSEClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	return c.listPrompts(ctx)
}

// GetPrompt retrieves a specific prompt.
func (c *SSEClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}

// Ping checks if the server is responsive.
func (c *SSEClient) Ping(ctx context.Context) error {
	return c.ping(ctx)
}
