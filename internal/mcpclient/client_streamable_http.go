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

// StreamableHTTPClient implements the MCPClient interface using the
// streamable HTTP transport, the default for remote servers.
type StreamableHTTPClient struct {
	baseClient
	url     string
	headers map[string]string
}

// NewStreamableHTTPClient creates a streamable-HTTP-based MCP client with
// optional custom headers (e.g. configured credentials passed through).
func NewStreamableHTTPClient(server, url string, headers map[string]string) *StreamableHTTPClient {
	if headers == nil {
		headers = make(map[string]string)
	}
	c := &StreamableHTTPClient{
		url:     url,
		headers: headers,
	}
	c.server = server
	return c
}

// Initialize opens the HTTP connection and performs the protocol handshake.
// Connection failure or a non-success status surfaces as a
// *mcperr.ConnectionError.
func (c *StreamableHTTPClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	logging.Debug("StreamableHTTPClient", "Connecting to %s for server %s", c.url, c.server)

	var opts []transport.StreamableHTTPCOption
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(c.headers))
		logging.Debug("StreamableHTTPClient", "Configured %d custom headers", len(c.headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(c.url, opts...)
	if err != nil {
		return &mcperr.ConnectionError{Server: c.server, Err: fmt.Errorf("create streamable HTTP client: %w", err)}
	}

	initCtx, cancel := withInitTimeout(ctx)
	defer cancel()

	initResult, err := mcpClient.Initialize(initCtx, newInitializeRequest())
	if err != nil {
		mcpClient.Close()
		return &mcperr.ConnectionError{Server: c.server, Err: fmt.Errorf("initialize MCP protocol: %w", err)}
	}

	c.client = mcpClient
	c.connected = true

	logging.Debug("StreamableHTTPClient", "Connected to server %s: %s %s",
		c.server, initResult.ServerInfo.Name, initResult.ServerInfo.Version)
	return nil
}

// Close cleanly shuts down the client connection.
func (c *StreamableHTTPClient) Close() error {
	return c.closeClient()
}

// ListTools returns all available tools from the server.
func (c *StreamableHTTPClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return c.listTools(ctx)
}

// CallTool executes a specific tool and returns the result.
func (c *StreamableHTTPClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

// ListResources returns all available resources from the server.
func (c *StreamableHTTPClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

// ReadResource retrieves a specific resource.
func (c *StreamableHTTPClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}

// ListPrompts returns all available prompts from the server.
func (c *StreamableHTTPClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	return c.listPrompts(ctx)
}

// GetPrompt retrieves a specific prompt.
func (c *StreamableHTTPClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}

// Ping checks if the server is responsive.
func (c *StreamableHTTPClient) Ping(ctx context.Context) error {
	return c.ping(ctx)
}
