// Package mcperr defines the error taxonomy shared by the dispatcher, the
// HTTP API and the interactive shell.
//
// Every failure that crosses a component boundary is one of the types below,
// so callers can classify errors with errors.As without string matching and
// every user-visible surface can report which server, tool or URI was
// involved.
package mcperr

import "fmt"

// ConnectionError indicates that a transport to a backend server could not
// be established or died mid-flight (spawn failure, network failure, closed
// channel).
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to server %q failed: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NotConnectedError indicates an operation was addressed to a server
// identifier that has no live connection.
type NotConnectedError struct {
	Server string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("server %q is not connected", e.Server)
}

// ProtocolError indicates a malformed or unexpected response from a backend
// server at the protocol level.
type ProtocolError struct {
	Server string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error from server %q: %v", e.Server, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ToolError indicates the backend server executed the tool but reported an
// application-level failure. Payload carries the server's own error content
// verbatim.
type ToolError struct {
	Server  string
	Tool    string
	Payload string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q on server %q failed: %s", e.Tool, e.Server, e.Payload)
}

// ConfigurationError indicates a required external dependency was absent
// when a dependent operation was invoked, e.g. an agentic query without a
// configured model backend.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// ValidationError indicates a caller-supplied identifier or transport
// descriptor violates an invariant (duplicate or unusable identifier,
// malformed descriptor).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}
