package mcpclient

import (
	"context"
	"testing"

	"conduit/internal/mcperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromDescriptor(t *testing.T) {
	tests := []struct {
		name        string
		descriptor  TransportDescriptor
		wantErr     bool
		errContains string
	}{
		{
			name: "valid stdio client",
			descriptor: TransportDescriptor{
				Type:    TransportStdio,
				Command: "echo",
				Args:    []string{"hello"},
			},
		},
		{
			name: "stdio client with env overlay",
			descriptor: TransportDescriptor{
				Type:    TransportStdio,
				Command: "echo",
				Env:     map[string]string{"TEST": "value"},
			},
		},
		{
			name:        "stdio client missing command",
			descriptor:  TransportDescriptor{Type: TransportStdio},
			wantErr:     true,
			errContains: "command",
		},
		{
			name: "stdio client with stray url",
			descriptor: TransportDescriptor{
				Type:    TransportStdio,
				Command: "echo",
				URL:     "http://example.com/mcp",
			},
			wantErr:     true,
			errContains: "url",
		},
		{
			name: "valid streamable-http client",
			descriptor: TransportDescriptor{
				Type: TransportStreamableHTTP,
				URL:  "http://example.com/mcp",
			},
		},
		{
			name: "streamable-http client with headers",
			descriptor: TransportDescriptor{
				Type:    TransportStreamableHTTP,
				URL:     "http://example.com/mcp",
				Headers: map[string]string{"Authorization": "Bearer token"},
			},
		},
		{
			name:        "streamable-http client missing url",
			descriptor:  TransportDescriptor{Type: TransportStreamableHTTP},
			wantErr:     true,
			errContains: "url",
		},
		{
			name: "streamable-http client with malformed url",
			descriptor: TransportDescriptor{
				Type: TransportStreamableHTTP,
				URL:  "not-a-url",
			},
			wantErr:     true,
			errContains: "not a valid URL",
		},
		{
			name: "valid sse client",
			descriptor: TransportDescriptor{
				Type: TransportSSE,
				URL:  "http://example.com/sse",
			},
		},
		{
			name:        "missing transport type",
			descriptor:  TransportDescriptor{Command: "echo"},
			wantErr:     true,
			errContains: "transport type is required",
		},
		{
			name:        "unknown transport type",
			descriptor:  TransportDescriptor{Type: "websocket", URL: "http://example.com"},
			wantErr:     true,
			errContains: "unknown transport type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New("test-server", tt.descriptor)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)

				var validationErr *mcperr.ValidationError
				assert.ErrorAs(t, err, &validationErr)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
		})
	}
}

func TestFactoryTransportSelection(t *testing.T) {
	stdio, err := New("a", TransportDescriptor{Type: TransportStdio, Command: "echo"})
	require.NoError(t, err)
	assert.IsType(t, (*StdioClient)(nil), stdio)

	sse, err := New("b", TransportDescriptor{Type: TransportSSE, URL: "http://localhost/sse"})
	require.NoError(t, err)
	assert.IsType(t, (*SSEClient)(nil), sse)

	httpClient, err := New("c", TransportDescriptor{Type: TransportStreamableHTTP, URL: "http://localhost/mcp"})
	require.NoError(t, err)
	assert.IsType(t, (*StreamableHTTPClient)(nil), httpClient)
}

// Operations on a client that was never initialized must fail with a
// typed connection error, not panic or hang.
func TestOperationsBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	c := NewStdioClient("alpha", "echo", nil, nil)

	var connErr *mcperr.ConnectionError

	_, err := c.ListTools(ctx)
	require.Error(t, err)
	assert.ErrorAs(t, err, &connErr)
	assert.Equal(t, "alpha", connErr.Server)

	_, err = c.CallTool(ctx, "anything", nil)
	assert.ErrorAs(t, err, &connErr)

	_, err = c.ListResources(ctx)
	assert.ErrorAs(t, err, &connErr)

	_, err = c.ReadResource(ctx, "file:///tmp/x")
	assert.ErrorAs(t, err, &connErr)

	_, err = c.ListPrompts(ctx)
	assert.ErrorAs(t, err, &connErr)

	_, err = c.GetPrompt(ctx, "p", nil)
	assert.ErrorAs(t, err, &connErr)

	err = c.Ping(ctx)
	assert.ErrorAs(t, err, &connErr)
}

// Close on a never-initialized client is a no-op.
func TestCloseBeforeInitialize(t *testing.T) {
	c := NewStreamableHTTPClient("beta", "http://localhost/mcp", nil)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestStdioSpawnFailure(t *testing.T) {
	c := NewStdioClient("gamma", "/nonexistent/binary/for/sure", nil, nil)
	err := c.Initialize(context.Background())
	require.Error(t, err)

	var connErr *mcperr.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "gamma", connErr.Server)
}

// A subprocess that dies during the handshake should have its stderr
// surfaced in the connection error.
func TestStdioHandshakeFailureSurfacesStderr(t *testing.T) {
	c := NewStdioClient("delta", "sh", []string{"-c", "echo 'flag --bogus is unknown' >&2; exit 1"}, nil)
	err := c.Initialize(context.Background())
	require.Error(t, err)

	var connErr *mcperr.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "delta", connErr.Server)
	assert.Contains(t, err.Error(), "flag --bogus is unknown")
}
