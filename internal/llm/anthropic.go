package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"conduit/pkg/logging"

	"github.com/google/uuid"
)

const (
	defaultAPIURL       = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
	maxResponseTokens   = 4096
)

// AnthropicClient talks to the Anthropic Messages API over plain HTTP.
// It implements ModelBackend without streaming; each Chat call is one
// request and one fully decoded response.
type AnthropicClient struct {
	apiKey     string
	model      string
	apiURL     string
	httpClient *http.Client
}

// AnthropicOption customizes an AnthropicClient.
type AnthropicOption func(*AnthropicClient)

// WithAPIURL overrides the Messages API endpoint. Used by tests.
func WithAPIURL(url string) AnthropicOption {
	return func(c *AnthropicClient) {
		c.apiURL = url
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) AnthropicOption {
	return func(c *AnthropicClient) {
		c.httpClient = client
	}
}

// NewAnthropicClient creates a backend for the given model. The client has
// no global timeout; callers bound requests with their context. Model
// responses can take well over a minute on long prompts.
func NewAnthropicClient(apiKey, model string, opts ...AnthropicOption) *AnthropicClient {
	c := &AnthropicClient{
		apiKey: apiKey,
		model:  model,
		apiURL: defaultAPIURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 120 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types for the Messages API.

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []anthropicContent
}

type anthropicContent struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"` // for tool_result blocks
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Chat sends one conversation turn and decodes the reply.
func (c *AnthropicClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error) {
	wireMessages, systemPrompt := toWireMessages(messages)

	req := anthropicRequest{
		Model:     c.model,
		Messages:  wireMessages,
		System:    systemPrompt,
		MaxTokens: maxResponseTokens,
		Tools:     toWireTools(tools),
	}

	logging.Debug("LLM", "Sending request: model=%s messages=%d tools=%d", c.model, len(wireMessages), len(req.Tools))

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		logging.Error("LLM", fmt.Errorf("status %d", httpResp.StatusCode), "API error: %s", string(errBody))
		return nil, fmt.Errorf("anthropic API error %d: %s", httpResp.StatusCode, string(errBody))
	}

	var resp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := fromWireResponse(&resp)
	logging.Debug("LLM", "Response received: stop=%s input_tokens=%d output_tokens=%d tool_calls=%d",
		result.StopReason, result.InputTokens, result.OutputTokens, len(result.Message.ToolCalls))
	return result, nil
}

// toWireMessages converts conversation turns to the Messages API shape and
// extracts system turns into the dedicated system prompt field.
func toWireMessages(messages []Message) ([]anthropicMessage, string) {
	var systemParts []string
	var result []anthropicMessage

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)

		case RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result = append(result, anthropicMessage{Role: "assistant", Content: msg.Content})
				continue
			}
			var blocks []anthropicContent
			if msg.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]any{}
				}
				id := tc.ID
				if id == "" {
					id = "toolu_" + uuid.NewString()
				}
				blocks = append(blocks, anthropicContent{
					Type:  "tool_use",
					ID:    id,
					Name:  tc.Name,
					Input: args,
				})
			}
			result = append(result, anthropicMessage{Role: "assistant", Content: blocks})

		case RoleTool:
			result = append(result, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})

		case RoleUser:
			result = append(result, anthropicMessage{Role: "user", Content: msg.Content})
		}
	}

	return result, strings.Join(systemParts, "\n\n")
}

func toWireTools(tools []ToolDefinition) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropicTool, 0, len(tools))
	for _, tool := range tools {
		schema := tool.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return result
}

func fromWireResponse(resp *anthropicResponse) *ChatResponse {
	var content strings.Builder
	var toolCalls []ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			args, ok := block.Input.(map[string]any)
			if !ok {
				args = map[string]any{}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	return &ChatResponse{
		Model: resp.Model,
		Message: Message{
			Role:      RoleAssistant,
			Content:   content.String(),
			ToolCalls: toolCalls,
		},
		StopReason:   resp.StopReason,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
}
