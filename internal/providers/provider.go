// Package providers implements the Provider and ReliableProvider components
// (spec §4.7): LLM invocation across three wire dialects (OpenAI-compatible,
// Anthropic Messages and AWS Bedrock Converse), plus retry-with-backoff and
// fallback.
package providers

import (
	"context"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// Message is one turn passed to a provider. Role is "user", "assistant", or
// "tool"; a message may carry tool calls (assistant) or tool results (tool
// role), matching spec §3's CompletionMessage shape.
type Message struct {
	Role        string
	Content     string
	Reasoning   string
	ToolCalls   []models.ToolCall
	ToolResults []models.ToolResult
}

// ToolSpec is what a provider needs to advertise one tool to the model:
// the same fields a Tool exposes (name/description/schema), detached from
// the agent package to avoid an import cycle between providers and agent.
type ToolSpec struct {
	Name        string
	Description string
	Schema      []byte // JSON Schema
}

// ChatRequest bundles everything a provider needs for one round.
type ChatRequest struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolSpec
	Temperature float64
	MaxTokens   int
}

// ChatResponse is a provider's non-streaming reply.
type ChatResponse struct {
	Text             string
	ReasoningContent string
	ToolCalls        []models.ToolCall
	InputTokens      int
	OutputTokens     int
}

// StreamChunk is one element of a streaming reply.
type StreamChunk struct {
	Text             string
	ReasoningContent string
	ToolCall         *models.ToolCall
	Done             bool
	Err              error
}

// Provider is the uniform LLM invocation contract (spec §4.7).
type Provider interface {
	Name() string
	ChatWithTools(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}
