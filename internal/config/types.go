package config

import (
	"conduit/internal/mcpclient"
)

// Config is the top-level configuration for conduit. It is resolved once at
// startup (file plus environment) into an immutable value that constructors
// receive; nothing reads ambient environment state after Load returns.
type Config struct {
	Model   ModelConfig    `yaml:"model,omitempty"`
	HTTP    HTTPConfig     `yaml:"http,omitempty"`
	Servers []ServerConfig `yaml:"servers,omitempty"`
}

// ModelConfig configures the language-model backend used by the agentic
// query loop. An empty APIKey means no backend is configured; query
// operations then fail with a configuration error.
type ModelConfig struct {
	Model  string `yaml:"model,omitempty"`  // model identifier, e.g. "claude-sonnet-4-20250514"
	APIKey string `yaml:"apiKey,omitempty"` // resolved from ANTHROPIC_API_KEY when unset
}

// HTTPConfig configures the REST front end.
type HTTPConfig struct {
	Host string `yaml:"host,omitempty"` // host to bind to (default: localhost)
	Port int    `yaml:"port,omitempty"` // port to listen on (default: 8090)
}

// ServerConfig describes one backend MCP server to connect to at startup.
type ServerConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Transport selects the channel mechanism: "stdio", "sse" or
	// "streamable-http". Defaults to "stdio" when Command is set and
	// "streamable-http" when URL is set.
	Transport string `yaml:"transport,omitempty"`

	// Stdio transport
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`

	// SSE / streamable HTTP transports
	URL     string            `yaml:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Descriptor converts the server entry into a transport descriptor.
func (s ServerConfig) Descriptor() mcpclient.TransportDescriptor {
	return mcpclient.TransportDescriptor{
		Type:    mcpclient.TransportType(s.effectiveTransport()),
		Command: s.Command,
		Args:    s.Args,
		Env:     s.Env,
		URL:     s.URL,
		Headers: s.Headers,
	}
}

func (s ServerConfig) effectiveTransport() string {
	if s.Transport != "" {
		return s.Transport
	}
	if s.Command != "" {
		return string(mcpclient.TransportStdio)
	}
	if s.URL != "" {
		return string(mcpclient.TransportStreamableHTTP)
	}
	return ""
}

// HasModelBackend reports whether a language-model backend is configured.
func (c Config) HasModelBackend() bool {
	return c.Model.APIKey != ""
}

// defaultConfig returns the built-in defaults that the loaded file is
// merged onto.
func defaultConfig() Config {
	return Config{
		Model: ModelConfig{
			Model: "claude-sonnet-4-20250514",
		},
		HTTP: HTTPConfig{
			Host: "localhost",
			Port: 8090,
		},
	}
}
