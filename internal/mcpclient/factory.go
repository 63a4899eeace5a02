package mcpclient

import (
	"fmt"
	"net/url"
	"strings"

	"conduit/internal/mcperr"
)

// TransportType identifies the channel mechanism used to reach a backend
// server.
type TransportType string

const (
	// TransportStdio spawns a local subprocess and speaks over its
	// stdin/stdout pair.
	TransportStdio TransportType = "stdio"
	// TransportSSE opens a Server-Sent Events connection.
	TransportSSE TransportType = "sse"
	// TransportStreamableHTTP opens a streamable HTTP connection. This is
	// the default for URL-based servers.
	TransportStreamableHTTP TransportType = "streamable-http"
)

// TransportDescriptor describes how to reach one backend server. Exactly
// one of the stdio fields (Command) or the HTTP fields (URL) must be set,
// matching Type. Descriptors are immutable once a connection is attempted.
type TransportDescriptor struct {
	Type TransportType

	// Stdio transport
	Command string
	Args    []string
	Env     map[string]string // overlay merged onto the ambient environment

	// SSE / streamable HTTP transports
	URL     string
	Headers map[string]string
}

// Validate checks the descriptor is well-formed for its transport type.
// Malformed descriptors are rejected here, before any connect is attempted.
func (d TransportDescriptor) Validate() error {
	switch d.Type {
	case TransportStdio:
		if strings.TrimSpace(d.Command) == "" {
			return &mcperr.ValidationError{Field: "command", Reason: "required for stdio transport"}
		}
		if d.URL != "" {
			return &mcperr.ValidationError{Field: "url", Reason: "must not be set for stdio transport"}
		}
	case TransportSSE, TransportStreamableHTTP:
		if strings.TrimSpace(d.URL) == "" {
			return &mcperr.ValidationError{Field: "url", Reason: fmt.Sprintf("required for %s transport", d.Type)}
		}
		parsed, err := url.Parse(d.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return &mcperr.ValidationError{Field: "url", Reason: fmt.Sprintf("%q is not a valid URL", d.URL)}
		}
		if d.Command != "" {
			return &mcperr.ValidationError{Field: "command", Reason: fmt.Sprintf("must not be set for %s transport", d.Type)}
		}
	case "":
		return &mcperr.ValidationError{Field: "transport", Reason: "transport type is required"}
	default:
		return &mcperr.ValidationError{Field: "transport", Reason: fmt.Sprintf("unknown transport type %q", d.Type)}
	}
	return nil
}

// New builds the MCP client for the given server identifier and transport
// descriptor. The descriptor is validated first; no connection is attempted
// until the caller invokes Initialize.
func New(server string, descriptor TransportDescriptor) (MCPClient, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}

	switch descriptor.Type {
	case TransportStdio:
		return NewStdioClient(server, descriptor.Command, descriptor.Args, descriptor.Env), nil
	case TransportSSE:
		return NewSSEClient(server, descriptor.URL, descriptor.Headers), nil
	case TransportStreamableHTTP:
		return NewStreamableHTTPClient(server, descriptor.URL, descriptor.Headers), nil
	default:
		return nil, &mcperr.ValidationError{Field: "transport", Reason: fmt.Sprintf("unknown transport type %q", descriptor.Type)}
	}
}
