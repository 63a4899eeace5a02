package mcpclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"conduit/internal/mcperr"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// protocolVersion is the MCP protocol revision spoken during the handshake.
const protocolVersion = "2024-11-05"

// DefaultInitTimeout bounds client initialization when the caller context
// carries no deadline. For stdio transports this covers subprocess spawn
// plus the protocol handshake.
const DefaultInitTimeout = 10 * time.Second

// MCPClient is one protocol session with one backend server.
// All transport types (stdio, SSE, streamable-http) implement this
// interface, enabling polymorphic usage and easier testing with fakes.
//
// None of the operations retry implicitly. Transport-level faults surface
// as *mcperr.ConnectionError or *mcperr.ProtocolError; a tool that ran but
// reported its own failure comes back as a successful CallToolResult with
// IsError set, never as an error from CallTool.
type MCPClient interface {
	// Initialize establishes the connection and performs the protocol handshake.
	Initialize(ctx context.Context) error
	// Close cleanly shuts down the client connection.
	Close() error
	// ListTools returns all available tools from the server.
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	// CallTool executes a specific tool and returns the result.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	// ListResources returns all available resources from the server.
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	// ReadResource retrieves a specific resource.
	ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
	// ListPrompts returns all available prompts from the server.
	ListPrompts(ctx context.Context) ([]mcp.Prompt, error)
	// GetPrompt retrieves a specific prompt.
	GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error)
	// Ping checks if the server is responsive.
	Ping(ctx context.Context) error
}

// Compile-time interface compliance checks
var (
	_ MCPClient = (*StdioClient)(nil)
	_ MCPClient = (*SSEClient)(nil)
	_ MCPClient = (*StreamableHTTPClient)(nil)
)

// baseClient provides the protocol operations shared by every transport.
// The embedding transport type owns Initialize; everything after the
// handshake is identical across transports.
type baseClient struct {
	server    string // server identifier, used in error context
	client    client.MCPClient
	mu        sync.RWMutex
	connected bool
}

// checkConnected verifies the session is live. Caller must hold at least a
// read lock on mu.
func (b *baseClient) checkConnected() error {
	if !b.connected || b.client == nil {
		return &mcperr.ConnectionError{Server: b.server, Err: fmt.Errorf("client not connected")}
	}
	return nil
}

// closeClient performs the common close logic. Closing an already-closed
// client is a no-op.
func (b *baseClient) closeClient() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected || b.client == nil {
		return nil
	}

	err := b.client.Close()
	b.connected = false
	b.client = nil

	return err
}

// newInitializeRequest builds the handshake request sent by every transport.
func newInitializeRequest() mcp.InitializeRequest {
	return mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: protocolVersion,
			ClientInfo: mcp.Implementation{
				Name:    "conduit",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}
}

// withInitTimeout applies DefaultInitTimeout when ctx has no deadline.
func withInitTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultInitTimeout)
}

func (b *baseClient) listTools(ctx context.Context) ([]mcp.Tool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	result, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, &mcperr.ProtocolError{Server: b.server, Err: fmt.Errorf("list tools: %w", err)}
	}

	return result.Tools, nil
}

func (b *baseClient) callTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	// Arguments pass through verbatim; the input schema is advisory and is
	// never enforced on this side of the wire.
	result, err := b.client.CallTool(ctx, mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, &mcperr.ProtocolError{Server: b.server, Err: fmt.Errorf("call tool %s: %w", name, err)}
	}

	return result, nil
}

func (b *baseClient) listResources(ctx context.Context) ([]mcp.Resource, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	result, err := b.client.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, &mcperr.ProtocolError{Server: b.server, Err: fmt.Errorf("list resources: %w", err)}
	}

	return result.Resources, nil
}

func (b *baseClient) readResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	result, err := b.client.ReadResource(ctx, mcp.ReadResourceRequest{
		Params: struct {
			URI       string         `json:"uri"`
			Arguments map[string]any `json:"arguments,omitempty"`
		}{
			URI: uri,
		},
	})
	if err != nil {
		return nil, &mcperr.ProtocolError{Server: b.server, Err: fmt.Errorf("read resource %s: %w", uri, err)}
	}

	return result, nil
}

func (b *baseClient) listPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	result, err := b.client.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, &mcperr.ProtocolError{Server: b.server, Err: fmt.Errorf("list prompts: %w", err)}
	}

	return result.Prompts, nil
}

func (b *baseClient) getPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	// The prompt API wants string arguments; non-strings are formatted.
	stringArgs := make(map[string]string)
	for k, v := range args {
		if str, ok := v.(string); ok {
			stringArgs[k] = str
		} else {
			stringArgs[k] = fmt.Sprintf("%v", v)
		}
	}

	result, err := b.client.GetPrompt(ctx, mcp.GetPromptRequest{
		Params: struct {
			Name      string            `json:"name"`
			Arguments map[string]string `json:"arguments,omitempty"`
		}{
			Name:      name,
			Arguments: stringArgs,
		},
	})
	if err != nil {
		return nil, &mcperr.ProtocolError{Server: b.server, Err: fmt.Errorf("get prompt %s: %w", name, err)}
	}

	return result, nil
}

func (b *baseClient) ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return err
	}

	if err := b.client.Ping(ctx); err != nil {
		return &mcperr.ConnectionError{Server: b.server, Err: fmt.Errorf("ping: %w", err)}
	}
	return nil
}
