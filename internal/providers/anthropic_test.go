package providers

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rrclaw/rrclaw/pkg/models"
)

func TestAnthropicConvertMessagesSkipsSystemRole(t *testing.T) {
	p := &AnthropicProvider{}
	out, err := p.convertMessages([]Message{{Role: "system", Content: "ignored"}})
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected system-role messages to be dropped (handled via top-level System), got %d", len(out))
	}
}

func TestAnthropicConvertMessagesBuildsToolUseAndResultBlocks(t *testing.T) {
	p := &AnthropicProvider{}
	messages := []Message{
		{
			Role:      "assistant",
			ToolCalls: []models.ToolCall{{ID: "t1", Name: "shell", Args: json.RawMessage(`{"command":"ls"}`)}},
		},
		{
			Role:        "user",
			ToolResults: []models.ToolResult{{ToolCallID: "t1", Success: true, Output: "file.txt"}},
		},
	}
	out, err := p.convertMessages(messages)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 converted messages, got %d", len(out))
	}
}

func TestAnthropicConvertMessagesRejectsInvalidToolArgs(t *testing.T) {
	p := &AnthropicProvider{}
	messages := []Message{
		{Role: "assistant", ToolCalls: []models.ToolCall{{ID: "t1", Name: "shell", Args: json.RawMessage(`not-json`)}}},
	}
	if _, err := p.convertMessages(messages); err == nil {
		t.Fatal("expected an error for malformed tool call arguments")
	}
}

func TestAnthropicConvertMessagesDropsEmptyContentMessages(t *testing.T) {
	p := &AnthropicProvider{}
	out, err := p.convertMessages([]Message{{Role: "user", Content: ""}})
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 0 {
		t.Fatal("expected a message with no content, tool calls, or tool results to be dropped")
	}
}

func TestToolResultTextPrefersErrorOnFailure(t *testing.T) {
	tr := models.ToolResult{Success: false, Error: "denied", Output: "ignored"}
	if got := toolResultText(tr); got != "denied" {
		t.Fatalf("got %q, want %q", got, "denied")
	}
}

func TestToolResultTextUsesOutputOnSuccess(t *testing.T) {
	tr := models.ToolResult{Success: true, Output: "ok"}
	if got := toolResultText(tr); got != "ok" {
		t.Fatalf("got %q, want %q", got, "ok")
	}
}

func TestAnthropicConvertToolsBuildsSchema(t *testing.T) {
	p := &AnthropicProvider{}
	schema := json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
	tools, err := p.convertTools([]ToolSpec{{Name: "file_read", Description: "read a file", Schema: schema}})
	if err != nil {
		t.Fatalf("convertTools: %v", err)
	}
	if len(tools) != 1 {
		t.Fatalf("expected 1 converted tool, got %d", len(tools))
	}
	if tools[0].OfTool == nil || tools[0].OfTool.Name != "file_read" {
		t.Fatalf("unexpected tool param: %+v", tools[0])
	}
}

func TestAnthropicConvertToolsRejectsInvalidSchema(t *testing.T) {
	p := &AnthropicProvider{}
	_, err := p.convertTools([]ToolSpec{{Name: "broken", Schema: json.RawMessage(`not-json`)}})
	if err == nil {
		t.Fatal("expected an error for a malformed tool schema")
	}
}

func TestClassifyAnthropicErrorWrapsNonAPIError(t *testing.T) {
	err := classifyAnthropicError(errors.New("connection reset"))
	if err == nil {
		t.Fatal("expected a wrapped error")
	}
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected a non-SDK error to default to transient, got %v", err)
	}
}
