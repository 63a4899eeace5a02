package mcpclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"conduit/internal/mcperr"
	"conduit/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// StdioClient implements the MCPClient interface using stdio transport.
// It spawns a local subprocess and exchanges framed messages over the
// process's standard input/output pair. The subprocess lifetime is tied
// 1:1 to this client: Close terminates it.
type StdioClient struct {
	baseClient
	command string
	args    []string
	env     map[string]string
}

// NewStdioClient creates a stdio-based MCP client for the given server
// identifier. The env map is an overlay: the underlying transport merges it
// onto the ambient process environment rather than replacing it.
func NewStdioClient(server, command string, args []string, env map[string]string) *StdioClient {
	c := &StdioClient{
		command: command,
		args:    args,
		env:     env,
	}
	c.server = server
	return c
}

// Initialize spawns the subprocess and performs the protocol handshake.
// Spawn failure (missing executable, permission) surfaces as a
// *mcperr.ConnectionError with the underlying OS error attached.
func (c *StdioClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	logging.Debug("StdioClient", "Spawning %s %v for server %s", c.command, c.args, c.server)

	var envStrings []string
	for k, v := range c.env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}

	mcpClient, err := client.NewStdioMCPClient(c.command, envStrings, c.args...)
	if err != nil {
		return &mcperr.ConnectionError{Server: c.server, Err: fmt.Errorf("spawn %s: %w", c.command, err)}
	}

	initCtx, cancel := withInitTimeout(ctx)
	defer cancel()

	initResult, err := mcpClient.Initialize(initCtx, newInitializeRequest())
	if err != nil {
		logging.Error("StdioClient", err, "Handshake failed for server %s", c.server)
		tail := stderrTail(mcpClient)
		if closeErr := mcpClient.Close(); closeErr != nil {
			logging.Debug("StdioClient", "Error closing failed client for %s: %v", c.server, closeErr)
		}
		initErr := fmt.Errorf("initialize MCP protocol: %w", err)
		if tail != "" {
			initErr = fmt.Errorf("initialize MCP protocol: %w (stderr: %s)", err, tail)
		}
		return &mcperr.ConnectionError{Server: c.server, Err: initErr}
	}

	c.client = mcpClient
	c.connected = true

	logCapabilities("StdioClient", c.server, initResult)
	return nil
}

// Close terminates the subprocess and shuts down the session.
func (c *StdioClient) Close() error {
	return c.closeClient()
}

// ListTools returns all available tools from the server.
func (c *StdioClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return c.listTools(ctx)
}

// CallTool executes a specific tool and returns the result.
func (c *StdioClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

// ListResources returns all available resources from the server.
func (c *StdioClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

// ReadResource retrieves a specific resource.
func (c *StdioClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}

// ListPrompts returns all available prompts from the server.
func (c *StdioClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	return c.listPrompts(ctx)
}

// GetPrompt retrieves a specific prompt.
func (c *StdioClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}

// Ping checks if the server is responsive.
func (c *StdioClient) Ping(ctx context.Context) error {
	return c.ping(ctx)
}

// stderrTail drains what the subprocess managed to write to stderr so a
// failed handshake carries the process's own diagnostics. The read is
// bounded and abandoned after a short grace period.
func stderrTail(mcpClient *client.Client) string {
	stderr, ok := client.GetStderr(mcpClient)
	if !ok {
		return ""
	}

	lines := make(chan string, 1)
	go func() {
		buf := make([]byte, 2048)
		n, _ := stderr.Read(buf)
		lines <- strings.TrimSpace(string(buf[:n]))
	}()

	select {
	case tail := <-lines:
		return tail
	case <-time.After(250 * time.Millisecond):
		return ""
	}
}

// logCapabilities records which capability families the server advertised
// during the handshake. Advisory only; discovery drives the actual cache.
func logCapabilities(subsystem, server string, initResult *mcp.InitializeResult) {
	if initResult.Capabilities.Tools != nil {
		logging.Debug(subsystem, "Server %s supports tools", server)
	}
	if initResult.Capabilities.Resources != nil {
		logging.Debug(subsystem, "Server %s supports resources", server)
	}
	if initResult.Capabilities.Prompts != nil {
		logging.Debug(subsystem, "Server %s supports prompts", server)
	}
}
