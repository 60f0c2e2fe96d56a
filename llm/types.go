package llm

import (
	"encoding/json"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

// Message represents a single message in a conversation.
// This is provider-neutral and can represent user, assistant, system, or
// tool-result messages.
type Message struct {
	Role    MessageRole    `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock represents a single content block within a message.
// It can be text, a tool use, or a tool result.
type ContentBlock struct {
	Type       ContentBlockType `json:"type"`
	Text       string           `json:"text,omitempty"`
	ToolUse    *ToolUseBlock    `json:"tool_use,omitempty"`
	ToolResult *ToolResultBlock `json:"tool_result,omitempty"`
}

// ContentBlockType represents the type of content block.
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
)

// ToolUseBlock represents a tool invocation request emitted by the model.
// Arguments is the raw argument payload exactly as the provider produced
// it; the pipeline never parses it.
type ToolUseBlock struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResultBlock represents the result of a tool invocation, correlated
// to a ToolUseBlock by ID. Content is an opaque payload, typically JSON.
type ToolResultBlock struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// ToolSpec represents a tool definition that can be provided to a model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// Request represents a complete model request.
type Request struct {
	Model       string     `json:"model"`
	Messages    []Message  `json:"messages"`
	System      string     `json:"system,omitempty"`
	Tools       []ToolSpec `json:"tools,omitempty"`
	MaxTokens   int64      `json:"max_tokens,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
}

// Response represents a complete model response.
type Response struct {
	Content    []ContentBlock `json:"content"`
	Usage      *Usage         `json:"usage,omitempty"`
	StopReason string         `json:"stop_reason,omitempty"`
}

// Stop reasons reported by providers, normalized across backends.
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonToolUse   = "tool_use"
	StopReasonMaxTokens = "max_tokens"
)

// Usage represents provider-reported token usage.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Chunk represents one incremental unit of a streamed response.
// Most chunks carry a text delta; tool-call chunks carry the tool use
// block or a fragment of its argument payload, and the final chunk may
// carry a finish reason plus cumulative usage.
type Chunk struct {
	Delta        *Delta `json:"delta,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// Delta is the incremental payload of a chunk.
type Delta struct {
	Type      DeltaType     `json:"type"`
	Role      MessageRole   `json:"role,omitempty"`
	Text      string        `json:"text,omitempty"`
	ToolUse   *ToolUseBlock `json:"tool_use,omitempty"`
	ToolInput string        `json:"tool_input,omitempty"`
}

// DeltaType represents the kind of incremental payload.
type DeltaType string

const (
	DeltaTypeRole      DeltaType = "role"
	DeltaTypeText      DeltaType = "text"
	DeltaTypeToolUse   DeltaType = "tool_use"
	DeltaTypeToolInput DeltaType = "tool_input"
)

// Content returns the text fragment carried by this chunk, or "" for
// non-content chunks (role-only or tool-call deltas).
func (c *Chunk) Content() string {
	if c.Delta != nil && c.Delta.Type == DeltaTypeText {
		return c.Delta.Text
	}
	return ""
}

// Role returns the role announced by this chunk, typically only present
// in the first chunk of a stream.
func (c *Chunk) Role() MessageRole {
	if c.Delta != nil {
		return c.Delta.Role
	}
	return ""
}

// ToolUse returns the tool invocation started by this chunk, if any.
func (c *Chunk) ToolUse() *ToolUseBlock {
	if c.Delta != nil && c.Delta.Type == DeltaTypeToolUse {
		return c.Delta.ToolUse
	}
	return nil
}

// IsFinal reports whether this chunk carries a finish reason. Providers
// only set the finish reason on the last content-bearing chunk.
func (c *Chunk) IsFinal() bool {
	return c.FinishReason != ""
}

// NewTextMessage creates a message with a single text content block.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{
				Type: ContentBlockTypeText,
				Text: text,
			},
		},
	}
}

// NewToolUseMessage creates an assistant message with tool use blocks.
func NewToolUseMessage(toolUses []ToolUseBlock) Message {
	content := make([]ContentBlock, len(toolUses))
	for i, tu := range toolUses {
		content[i] = ContentBlock{
			Type:    ContentBlockTypeToolUse,
			ToolUse: &tu,
		}
	}
	return Message{
		Role:    RoleAssistant,
		Content: content,
	}
}

// NewToolResultMessage creates a tool-role message with tool result blocks.
func NewToolResultMessage(toolResults []ToolResultBlock) Message {
	content := make([]ContentBlock, len(toolResults))
	for i, tr := range toolResults {
		content[i] = ContentBlock{
			Type:       ContentBlockTypeToolResult,
			ToolResult: &tr,
		}
	}
	return Message{
		Role:    RoleTool,
		Content: content,
	}
}

// Text concatenates all text blocks of a response in order.
func (r *Response) Text() string {
	var out string
	for _, block := range r.Content {
		if block.Type == ContentBlockTypeText {
			out += block.Text
		}
	}
	return out
}

// ToolCalls returns all tool use blocks of a response in order.
func (r *Response) ToolCalls() []ToolUseBlock {
	var calls []ToolUseBlock
	for _, block := range r.Content {
		if block.Type == ContentBlockTypeToolUse && block.ToolUse != nil {
			calls = append(calls, *block.ToolUse)
		}
	}
	return calls
}

// ToJSON marshals a message to JSON for debugging/logging purposes.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
