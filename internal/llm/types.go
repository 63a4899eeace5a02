// Package llm provides the language-model backend used by the agentic
// query loop.
package llm

import "context"

// Role values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one role-tagged turn in a conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-result turns, echoes the invocation id
}

// ToolCall is a tool-invocation request emitted by the model. ID is the
// provider-assigned correlation id that the matching tool-result turn must
// echo back.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition describes one callable tool presented to the model:
// name, human description, and a JSON-schema-shaped input contract. The
// schema is an open document; it is passed through, never interpreted.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

// ChatResponse is the provider-neutral response to one model turn.
type ChatResponse struct {
	Model      string
	Message    Message
	StopReason string

	InputTokens  int
	OutputTokens int
}

// ModelBackend is the contract the orchestrator requires from a
// language-model provider: given conversation turns and tool definitions,
// return free text and/or tool-invocation requests.
type ModelBackend interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error)
}
