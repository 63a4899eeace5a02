package config

import (
	"os"
	"path/filepath"
	"testing"

	"conduit/internal/mcpclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644)
	require.NoError(t, err)
	return dir
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CONDUIT_MODEL", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.HTTP.Host)
	assert.Equal(t, 8090, cfg.HTTP.Port)
	assert.Empty(t, cfg.Servers)
	assert.False(t, cfg.HasModelBackend())
}

func TestLoadMergesFileOntoDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CONDUIT_MODEL", "")

	dir := writeConfig(t, `
http:
  port: 9999
servers:
  - name: filesystem
    command: npx
    args: ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
  - name: remote
    transport: streamable-http
    url: https://example.com/mcp
    headers:
      Authorization: Bearer abc
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	// Default host survives, file port wins.
	assert.Equal(t, "localhost", cfg.HTTP.Host)
	assert.Equal(t, 9999, cfg.HTTP.Port)

	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "filesystem", cfg.Servers[0].Name)
	assert.Equal(t, "remote", cfg.Servers[1].Name)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := writeConfig(t, "servers: [not: valid: yaml")
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	t.Setenv("CONDUIT_MODEL", "claude-test-model")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sk-test-key", cfg.Model.APIKey)
	assert.Equal(t, "claude-test-model", cfg.Model.Model)
	assert.True(t, cfg.HasModelBackend())
}

func TestFileAPIKeyWinsOverEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")

	dir := writeConfig(t, `
model:
  apiKey: sk-from-file
`)
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", cfg.Model.APIKey)
}

func TestDescriptorTransportInference(t *testing.T) {
	tests := []struct {
		name     string
		server   ServerConfig
		expected mcpclient.TransportType
	}{
		{
			name:     "explicit transport",
			server:   ServerConfig{Name: "a", Transport: "sse", URL: "http://x/sse"},
			expected: mcpclient.TransportSSE,
		},
		{
			name:     "command implies stdio",
			server:   ServerConfig{Name: "b", Command: "npx"},
			expected: mcpclient.TransportStdio,
		},
		{
			name:     "url implies streamable-http",
			server:   ServerConfig{Name: "c", URL: "http://x/mcp"},
			expected: mcpclient.TransportStreamableHTTP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.server.Descriptor().Type)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantErr     bool
		errContains []string
	}{
		{
			name: "valid config",
			cfg: Config{Servers: []ServerConfig{
				{Name: "fs", Command: "npx"},
				{Name: "web", URL: "https://example.com/mcp"},
			}},
		},
		{
			name:        "missing name",
			cfg:         Config{Servers: []ServerConfig{{Command: "npx"}}},
			wantErr:     true,
			errContains: []string{"name is required"},
		},
		{
			name: "duplicate names",
			cfg: Config{Servers: []ServerConfig{
				{Name: "fs", Command: "npx"},
				{Name: "fs", Command: "uvx"},
			}},
			wantErr:     true,
			errContains: []string{"duplicate server name"},
		},
		{
			name: "one error per offending server",
			cfg: Config{Servers: []ServerConfig{
				{Name: "good", Command: "npx"},
				{Name: "bad1"},
				{Name: "bad2", Transport: "carrier-pigeon", URL: "http://x"},
			}},
			wantErr:     true,
			errContains: []string{`server "bad1"`, `server "bad2"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, fragment := range tt.errContains {
				assert.Contains(t, err.Error(), fragment)
			}
		})
	}
}
