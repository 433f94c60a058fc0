package models

import (
	"encoding/json"
	"time"
)

// Message roles used in the provider chat protocol
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single message in a conversation
type Message struct {
	Role       string     `json:"role"`                   // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`                // Message content
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // Tool invocations requested by the assistant
	ToolCallID string     `json:"tool_call_id,omitempty"` // Set on tool-result messages
	Timestamp  time.Time  `json:"timestamp"`              // When the message was created
}

// ToolCall represents a model-requested tool invocation
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // Structured arguments as raw JSON
}

// ToolCallResult is the outcome of executing a single tool call.
// It lives for one conversation turn and is never persisted by the engine.
type ToolCallResult struct {
	ToolCallID string         `json:"tool_call_id"`
	Success    bool           `json:"success"`
	Message    string         `json:"message"` // Human-readable outcome
	Payload    map[string]any `json:"payload,omitempty"`
}

// ToolSchema describes a tool for the provider's function-calling protocol
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Usage holds token counts reported by the provider for one call
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CallType classifies a provider call for metering
type CallType string

const (
	CallTypeConversation CallType = "conversation"
	CallTypeToolFollowup CallType = "tool_followup"
	CallTypeGeneration   CallType = "generation"
)

// UsageMetric is one metering record for a provider call (or cache hit)
type UsageMetric struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Usage     Usage     `json:"usage"`
	CostUSD   float64   `json:"cost_usd"`
	Timestamp time.Time `json:"timestamp"`
	CallType  CallType  `json:"call_type"`
	CacheHit  bool      `json:"cache_hit"`
}
