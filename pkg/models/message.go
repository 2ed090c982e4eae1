// Package models defines the wire and storage shapes shared across the
// agent loop, providers, tools, and persistence layers.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the author of a ChatMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage is a single plain-text turn in the conversation.
//
// ReasoningContent carries a thinking trace emitted by some providers. It is
// only meaningful for the current turn: the loop clears it from prior
// assistant entries at the start of every turn (see internal/agent).
type ChatMessage struct {
	Role             Role   `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// ToolCall is an LLM's request to execute a tool.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	Output     string `json:"output"`
	Error      string `json:"error,omitempty"`
}

// EntryKind tags the variant held by a ConversationEntry.
type EntryKind string

const (
	EntryChatMessage       EntryKind = "chat_message"
	EntryAssistantToolCalls EntryKind = "assistant_tool_calls"
	EntryToolResult        EntryKind = "tool_result"
)

// ConversationEntry is the tagged union described by the conversation
// history invariant: every ToolResult entry must be preceded, within the
// same turn, by an AssistantToolCalls entry holding a matching call id.
// Only the fields relevant to Kind are populated.
type ConversationEntry struct {
	Kind EntryKind `json:"kind"`

	// Chat fields (Kind == EntryChatMessage)
	Chat *ChatMessage `json:"chat,omitempty"`

	// Assistant-with-tool-calls fields (Kind == EntryAssistantToolCalls)
	Text             string          `json:"text,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall      `json:"tool_calls,omitempty"`

	// Tool result fields (Kind == EntryToolResult)
	Result *ToolResult `json:"result,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewChatEntry builds a ConversationEntry wrapping a plain chat message.
func NewChatEntry(role Role, content string) ConversationEntry {
	return ConversationEntry{
		Kind:      EntryChatMessage,
		Chat:      &ChatMessage{Role: role, Content: content},
		CreatedAt: time.Now(),
	}
}

// NewAssistantToolCallsEntry builds a ConversationEntry for an assistant turn
// that requested one or more tool calls.
func NewAssistantToolCallsEntry(text, reasoning string, calls []ToolCall) ConversationEntry {
	return ConversationEntry{
		Kind:             EntryAssistantToolCalls,
		Text:             text,
		ReasoningContent: reasoning,
		ToolCalls:        calls,
		CreatedAt:        time.Now(),
	}
}

// NewToolResultEntry builds a ConversationEntry wrapping one tool result.
func NewToolResultEntry(result ToolResult) ConversationEntry {
	return ConversationEntry{
		Kind:      EntryToolResult,
		Result:    &result,
		CreatedAt: time.Now(),
	}
}

// StreamEventKind enumerates the StreamEvent variants.
type StreamEventKind string

const (
	StreamText     StreamEventKind = "text"
	StreamThinking StreamEventKind = "thinking"
	StreamDone     StreamEventKind = "done"
)

// StreamEvent is one element of a turn's output stream. Events for a single
// turn are emitted in strict order: zero or more Text/Thinking events
// followed by exactly one Done event.
type StreamEvent struct {
	Kind     StreamEventKind `json:"kind"`
	Delta    string          `json:"delta,omitempty"`
	Response string          `json:"response,omitempty"`
}
