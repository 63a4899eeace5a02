// Package mcpclient implements the per-server MCP protocol session over the
// supported transports: stdio subprocess, SSE, and streamable HTTP.
//
// Each client wraps one bidirectional channel to one backend server and
// exposes the protocol operations (list/call tools, list/read resources,
// list/get prompts, ping). Constructing a client performs no I/O; the
// connection is established by Initialize and torn down by Close. For stdio
// transports the spawned subprocess lives exactly as long as the client.
package mcpclient
