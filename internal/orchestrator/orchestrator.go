// Package orchestrator runs natural-language queries against the connected
// servers through a language-model backend.
//
// Tools from every connected server are flattened into one catalog under
// qualified names of the form <server><sep><tool>. The model drives a
// bounded loop: free text from every turn accumulates into the final
// answer; at most one tool invocation is resolved per turn. A successful
// invocation extends the conversation with a tool-result turn and the model
// is asked again so it can react. A failed invocation is recorded as
// literal text in the accumulated answer instead, the model is not re-asked
// for it, and any remaining invocation requests from the same turn are
// still processed. The loop ends on the first turn that resolves no
// invocation, and the accumulated text is the answer; a failed invocation
// therefore still yields an answer referencing the failure.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"conduit/internal/dispatch"
	"conduit/internal/llm"
	"conduit/internal/mcperr"
	"conduit/internal/registry"
	"conduit/pkg/logging"
)

const defaultMaxIterations = 25

const systemPrompt = `You are a helpful assistant with access to tools from one or more connected servers. Tool names are prefixed with the server they belong to. Use the tools when they help answer the user's question, and answer directly when they do not.`

// ToolInvocation records one tool call requested during a query.
type ToolInvocation struct {
	Server    string
	Tool      string
	Qualified string
	Failed    bool
}

// QueryResult is the outcome of one orchestrated query.
type QueryResult struct {
	Answer      string
	Turns       int
	Invocations []ToolInvocation

	InputTokens  int
	OutputTokens int
}

// Orchestrator wires the tool catalog, the model backend, and the
// dispatcher together for agentic queries.
type Orchestrator struct {
	registry      *registry.Registry
	dispatcher    *dispatch.Dispatcher
	backend       llm.ModelBackend
	maxIterations int
	onToolCall    func(server, tool string)
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMaxIterations bounds the number of model turns per query.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithToolCallObserver registers a callback invoked before each tool call,
// for progress display.
func WithToolCallObserver(fn func(server, tool string)) Option {
	return func(o *Orchestrator) {
		o.onToolCall = fn
	}
}

// New creates an orchestrator. The backend may be nil when no model is
// configured; Query then fails with a ConfigurationError.
func New(reg *registry.Registry, disp *dispatch.Dispatcher, backend llm.ModelBackend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:      reg,
		dispatcher:    disp,
		backend:       backend,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetToolCallObserver installs the progress callback after construction.
// Not safe to call concurrently with Query.
func (o *Orchestrator) SetToolCallObserver(fn func(server, tool string)) {
	o.onToolCall = fn
}

// Tools returns the flattened catalog of all connected servers' tools under
// qualified names.
func (o *Orchestrator) Tools() []llm.ToolDefinition {
	var defs []llm.ToolDefinition
	for _, id := range o.registry.ListIDs() {
		snap, ok := o.registry.Get(id)
		if !ok {
			continue
		}
		for _, tool := range snap.Tools {
			defs = append(defs, llm.ToolDefinition{
				Name:        QualifyToolName(id, tool.Name),
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			})
		}
	}
	return defs
}

// Query runs one natural-language query to completion.
func (o *Orchestrator) Query(ctx context.Context, query string) (*QueryResult, error) {
	if o.backend == nil {
		return nil, &mcperr.ConfigurationError{Reason: "no model backend configured, set an API key to enable queries"}
	}

	tools := o.Tools()
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: query},
	}

	result := &QueryResult{}
	var output strings.Builder
	appendOutput := func(text string) {
		if text == "" {
			return
		}
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		output.WriteString(text)
	}

	for turn := 0; turn < o.maxIterations; turn++ {
		resp, err := o.backend.Chat(ctx, messages, tools)
		if err != nil {
			return nil, fmt.Errorf("model turn %d: %w", turn+1, err)
		}
		result.Turns++
		result.InputTokens += resp.InputTokens
		result.OutputTokens += resp.OutputTokens

		// Free text accumulates across every turn, not just the last one.
		appendOutput(resp.Message.Content)

		// Walk the invocation requests in emission order. Failures become
		// literal answer text and never re-ask the model; the first success
		// resolves, extends the conversation and triggers the next turn,
		// leaving later requests from this turn unexecuted.
		resolved := false
		for _, call := range resp.Message.ToolCalls {
			text, invocation := o.executeToolCall(ctx, call)
			result.Invocations = append(result.Invocations, invocation)

			if invocation.Failed {
				appendOutput(text)
				continue
			}

			messages = append(messages,
				llm.Message{
					Role:      llm.RoleAssistant,
					Content:   resp.Message.Content,
					ToolCalls: []llm.ToolCall{call},
				},
				llm.Message{
					Role:       llm.RoleTool,
					ToolCallID: call.ID,
					Content:    text,
				},
			)
			resolved = true
			break
		}

		if !resolved {
			result.Answer = output.String()
			return result, nil
		}
	}

	return nil, fmt.Errorf("query did not converge within %d model turns", o.maxIterations)
}

// executeToolCall runs one requested invocation and renders its outcome as
// text. Malformed names, unknown servers, transport faults and
// tool-reported failures all come back as text with Failed set.
func (o *Orchestrator) executeToolCall(ctx context.Context, call llm.ToolCall) (string, ToolInvocation) {
	invocation := ToolInvocation{Qualified: call.Name}

	server, tool, err := SplitToolName(call.Name)
	if err != nil {
		invocation.Failed = true
		return fmt.Sprintf("Error: %v", err), invocation
	}
	invocation.Server = server
	invocation.Tool = tool

	if o.onToolCall != nil {
		o.onToolCall(server, tool)
	}
	logging.Info("Orchestrator", "Executing tool %s on server %s", tool, server)

	callResult, err := o.dispatcher.CallTool(ctx, server, tool, call.Arguments)
	if err != nil {
		invocation.Failed = true
		logging.Debug("Orchestrator", "Tool %s failed: %v", call.Name, err)
		return fmt.Sprintf("Error executing tool %s: %v", call.Name, err), invocation
	}

	return dispatch.ContentText(callResult.Content), invocation
}
