package repl

import (
	"bytes"
	"context"
	"testing"
	"unicode/utf8"

	"conduit/internal/dispatch"
	"conduit/internal/mcpclient"
	"conduit/internal/mcpclient/clienttest"
	"conduit/internal/orchestrator"
	"conduit/internal/registry"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		input    string
		wantCmd  string
		wantArgs []string
	}{
		{"servers", "servers", nil},
		{"  call  github search  ", "call", []string{"github", "search"}},
		{"QUERY what is up", "query", []string{"what", "is", "up"}},
		{"", "", nil},
	}
	for _, tt := range tests {
		cmd, args := parseLine(tt.input)
		assert.Equal(t, tt.wantCmd, cmd)
		assert.Equal(t, tt.wantArgs, args)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "0123456...", truncate("0123456789A", 10))

	// Multibyte descriptions must be cut on rune boundaries.
	got := truncate("héllo wörld, ça va très bien aujourd'hui", 10)
	assert.Equal(t, "héllo w...", got)
	assert.True(t, utf8.ValidString(got))

	cjk := truncate("日本語のツールの説明テキストです", 10)
	assert.Equal(t, "日本語のツール...", cjk)
	assert.True(t, utf8.ValidString(cjk))
}

func TestParseInlineArgs(t *testing.T) {
	args, err := parseInlineArgs([]string{"query=conduit", "limit=5", "exact=true", "pi=3.14"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"query": "conduit",
		"limit": int64(5),
		"exact": true,
		"pi":    3.14,
	}, args)

	args, err = parseInlineArgs(nil)
	require.NoError(t, err)
	assert.Nil(t, args)

	_, err = parseInlineArgs([]string{"no-equals"})
	assert.Error(t, err)
}

func TestPromptForArguments(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "search text"},
			"limit": map[string]interface{}{"type": "integer"},
		},
		Required: []string{"query"},
	}

	answers := map[string]string{
		"query (search text): ": "find me",
		"limit [optional]: ":    "10",
	}
	var prompts []string
	ask := func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return answers[prompt], nil
	}

	args, err := promptForArguments(schema, ask)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"query": "find me", "limit": int64(10)}, args)

	// Required fields are asked before optional ones.
	require.Len(t, prompts, 2)
	assert.Equal(t, "query (search text): ", prompts[0])
}

func TestPromptForArgumentsSkipsEmptyOptional(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"verbose": map[string]interface{}{"type": "boolean"},
		},
	}

	args, err := promptForArguments(schema, func(string) (string, error) { return "", nil })
	require.NoError(t, err)
	assert.Nil(t, args)
}

func TestPromptForArgumentsRequiredMissing(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"path": map[string]interface{}{"type": "string"},
		},
		Required: []string{"path"},
	}

	_, err := promptForArguments(schema, func(string) (string, error) { return "", nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")
}

func TestConvertByType(t *testing.T) {
	v, err := convertByType("42", "integer")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = convertByType("2.5", "number")
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = convertByType("true", "boolean")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = convertByType("anything", "")
	require.NoError(t, err)
	assert.Equal(t, "anything", v)

	_, err = convertByType("abc", "integer")
	assert.Error(t, err)
}

func newTestREPL(t *testing.T, fakes map[string]*clienttest.FakeClient) (*REPL, *bytes.Buffer) {
	t.Helper()
	reg := registry.New(registry.WithClientFactory(
		func(server string, d mcpclient.TransportDescriptor) (mcpclient.MCPClient, error) {
			return fakes[server], nil
		}))
	for id := range fakes {
		require.NoError(t, reg.Connect(context.Background(), id,
			mcpclient.TransportDescriptor{Type: mcpclient.TransportStdio, Command: "echo"}))
	}
	disp := dispatch.New(reg)
	r := New(reg, disp, orchestrator.New(reg, disp, nil))
	out := &bytes.Buffer{}
	r.out = out
	return r, out
}

func TestExecuteCall(t *testing.T) {
	fake := &clienttest.FakeClient{
		CallToolFunc: func(ctx context.Context, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
			assert.Equal(t, "search", tool)
			assert.Equal(t, map[string]interface{}{"query": "conduit"}, args)
			return clienttest.TextResult("one match"), nil
		},
	}
	r, out := newTestREPL(t, map[string]*clienttest.FakeClient{"github": fake})

	require.NoError(t, r.execute("call github search query=conduit"))
	assert.Contains(t, out.String(), "one match")
}

func TestExecuteUnknownCommand(t *testing.T) {
	r, _ := newTestREPL(t, nil)

	err := r.execute("frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestExecuteExit(t *testing.T) {
	r, _ := newTestREPL(t, nil)

	assert.ErrorIs(t, r.execute("exit"), errExit)
	assert.ErrorIs(t, r.execute("quit"), errExit)
}

func TestExecuteServersEmpty(t *testing.T) {
	r, out := newTestREPL(t, nil)

	require.NoError(t, r.execute("servers"))
	assert.Contains(t, out.String(), "No servers connected")
}

func TestExecutePing(t *testing.T) {
	r, out := newTestREPL(t, map[string]*clienttest.FakeClient{"fs": {}})

	require.NoError(t, r.execute("ping fs"))
	assert.Contains(t, out.String(), "fs: ok")

	assert.Error(t, r.execute("ping ghost"))
}

func TestExecuteDisconnect(t *testing.T) {
	fake := &clienttest.FakeClient{}
	r, out := newTestREPL(t, map[string]*clienttest.FakeClient{"fs": fake})

	require.NoError(t, r.execute("disconnect fs"))
	assert.Equal(t, 1, fake.Closed)
	assert.Contains(t, out.String(), "Disconnected fs")
}
