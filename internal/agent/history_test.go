package agent

import (
	"testing"

	"github.com/rrclaw/rrclaw/pkg/models"
)

func TestWellFormedValidHistory(t *testing.T) {
	h := NewHistory()
	h.AppendChat(models.RoleUser, "hi")
	h.Append(models.NewAssistantToolCallsEntry("", "", []models.ToolCall{{ID: "1", Name: "shell"}}))
	h.Append(models.NewToolResultEntry(models.ToolResult{ToolCallID: "1", Success: true, Output: "ok"}))
	h.AppendChat(models.RoleAssistant, "done")

	if !WellFormed(h.Entries()) {
		t.Fatal("expected well-formed history")
	}
}

func TestWellFormedRejectsOrphanToolResult(t *testing.T) {
	h := NewHistory()
	h.AppendChat(models.RoleUser, "hi")
	h.Append(models.NewToolResultEntry(models.ToolResult{ToolCallID: "1", Success: true, Output: "ok"}))

	if WellFormed(h.Entries()) {
		t.Fatal("a ToolResult with no preceding AssistantToolCalls must not be well-formed")
	}
}

func TestWellFormedRejectsPartialResultRun(t *testing.T) {
	h := NewHistory()
	h.Append(models.NewAssistantToolCallsEntry("", "", []models.ToolCall{{ID: "1"}, {ID: "2"}}))
	h.Append(models.NewToolResultEntry(models.ToolResult{ToolCallID: "1"}))
	// Missing the result for call id "2".

	if WellFormed(h.Entries()) {
		t.Fatal("a partially-answered tool-call batch must not be well-formed")
	}
}

func TestWellFormedRejectsMismatchedID(t *testing.T) {
	h := NewHistory()
	h.Append(models.NewAssistantToolCallsEntry("", "", []models.ToolCall{{ID: "1"}}))
	h.Append(models.NewToolResultEntry(models.ToolResult{ToolCallID: "wrong-id"}))

	if WellFormed(h.Entries()) {
		t.Fatal("a ToolResult with a mismatched call id must not be well-formed")
	}
}

func TestClearStaleThinkingDropsReasoningOnly(t *testing.T) {
	h := NewHistory()
	h.Append(models.NewAssistantToolCallsEntry("text", "reasoning", []models.ToolCall{{ID: "1"}}))
	h.Append(models.ConversationEntry{
		Kind: models.EntryChatMessage,
		Chat: &models.ChatMessage{Role: models.RoleAssistant, Content: "hi", ReasoningContent: "trace"},
	})

	h.ClearStaleThinking()

	entries := h.Entries()
	if entries[0].ReasoningContent != "" {
		t.Fatal("AssistantToolCalls reasoning should be cleared")
	}
	if entries[0].Text != "text" {
		t.Fatal("AssistantToolCalls text must be retained")
	}
	if entries[1].Chat.ReasoningContent != "" {
		t.Fatal("ChatMessage reasoning should be cleared")
	}
	if entries[1].Chat.Content != "hi" {
		t.Fatal("ChatMessage content must be retained")
	}
}

func TestTrimDanglingToolCallsRemovesUnansweredBatch(t *testing.T) {
	h := NewHistory()
	h.AppendChat(models.RoleUser, "hi")
	h.Append(models.NewAssistantToolCallsEntry("", "", []models.ToolCall{{ID: "1"}}))

	h.TrimDanglingToolCalls()

	if h.Len() != 1 {
		t.Fatalf("expected dangling AssistantToolCalls to be trimmed, got len=%d", h.Len())
	}
}

func TestTrimDanglingToolCallsRemovesPartiallyAnsweredBatch(t *testing.T) {
	h := NewHistory()
	h.AppendChat(models.RoleUser, "hi")
	h.Append(models.NewAssistantToolCallsEntry("", "", []models.ToolCall{{ID: "1"}, {ID: "2"}}))
	h.Append(models.NewToolResultEntry(models.ToolResult{ToolCallID: "1"}))

	h.TrimDanglingToolCalls()

	if h.Len() != 1 {
		t.Fatalf("expected partially-answered batch to be trimmed, got len=%d", h.Len())
	}
	if !WellFormed(h.Entries()) {
		t.Fatal("trimmed history must be well-formed")
	}
}

func TestTrimDanglingToolCallsLeavesCompleteHistoryAlone(t *testing.T) {
	h := NewHistory()
	h.AppendChat(models.RoleUser, "hi")
	h.Append(models.NewAssistantToolCallsEntry("", "", []models.ToolCall{{ID: "1"}}))
	h.Append(models.NewToolResultEntry(models.ToolResult{ToolCallID: "1"}))
	h.AppendChat(models.RoleAssistant, "done")

	before := h.Len()
	h.TrimDanglingToolCalls()

	if h.Len() != before {
		t.Fatalf("complete history should not be trimmed, len changed from %d to %d", before, h.Len())
	}
}

func TestReplacePrefixPreservesTail(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 10; i++ {
		h.AppendChat(models.RoleUser, "msg")
	}
	tailBefore := append([]models.ConversationEntry{}, h.Entries()[5:]...)

	h.ReplacePrefix(5, models.NewChatEntry(models.RoleSystem, "[Conversation Summary] x"))

	if h.Len() != 6 {
		t.Fatalf("expected 1 summary + 5 tail entries, got %d", h.Len())
	}
	tailAfter := h.Entries()[1:]
	for i := range tailBefore {
		if tailBefore[i].Chat.Content != tailAfter[i].Chat.Content {
			t.Fatalf("tail entry %d mutated by ReplacePrefix", i)
		}
	}
}
