// Package dispatch routes caller requests to the correct protocol session
// by server identifier.
//
// The dispatcher is deliberately thin: every operation first resolves the
// identifier to a live connection handle — unknown or disconnected
// identifiers fail fast with *mcperr.NotConnectedError before any channel
// I/O — and then delegates verbatim to the session. Results and errors pass
// through without reinterpretation, with one exception: a tool result the
// backend flagged as its own failure is surfaced as a *mcperr.ToolError
// carrying the server's payload verbatim, so callers always receive either
// a result or a typed failure, never both, never neither.
package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	"conduit/internal/mcperr"
	"conduit/internal/registry"
	"conduit/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

// Dispatcher routes tool calls, resource reads, prompt fetches and liveness
// probes across connected servers. It holds no state of its own; the
// registry remains the owner of all handles.
type Dispatcher struct {
	registry *registry.Registry
}

// New creates a dispatcher over the given registry.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{registry: reg}
}

// CallTool executes the named tool on the given server. Arguments reach the
// protocol session unmodified; the input schema is advisory and never
// enforced here.
func (d *Dispatcher) CallTool(ctx context.Context, server, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	client, err := d.registry.Client(server)
	if err != nil {
		return nil, err
	}

	logging.Debug("Dispatcher", "Calling tool %s on server %s", tool, server)

	result, err := client.CallTool(ctx, tool, args)
	if err != nil {
		return nil, err
	}

	if result.IsError {
		return nil, &mcperr.ToolError{
			Server:  server,
			Tool:    tool,
			Payload: ContentText(result.Content),
		}
	}

	return result, nil
}

// ReadResource fetches the resource at uri from the given server.
func (d *Dispatcher) ReadResource(ctx context.Context, server, uri string) (*mcp.ReadResourceResult, error) {
	client, err := d.registry.Client(server)
	if err != nil {
		return nil, err
	}

	logging.Debug("Dispatcher", "Reading resource %s from server %s", uri, server)
	return client.ReadResource(ctx, uri)
}

// GetPrompt fetches the named prompt from the given server.
func (d *Dispatcher) GetPrompt(ctx context.Context, server, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	client, err := d.registry.Client(server)
	if err != nil {
		return nil, err
	}

	logging.Debug("Dispatcher", "Getting prompt %s from server %s", name, server)
	return client.GetPrompt(ctx, name, args)
}

// Ping probes the given server for liveness.
func (d *Dispatcher) Ping(ctx context.Context, server string) error {
	client, err := d.registry.Client(server)
	if err != nil {
		return err
	}

	return client.Ping(ctx)
}

// ContentText flattens a list of content blocks into one string. Text
// blocks contribute their text verbatim; anything else is rendered as JSON
// so no information is dropped.
func ContentText(content []mcp.Content) string {
	var parts []string
	for _, item := range content {
		if textContent, ok := mcp.AsTextContent(item); ok {
			parts = append(parts, textContent.Text)
			continue
		}
		if jsonBytes, err := json.Marshal(item); err == nil {
			parts = append(parts, string(jsonBytes))
		}
	}
	return strings.Join(parts, "\n")
}
