package agent

import "github.com/rrclaw/rrclaw/pkg/models"

// History is an append-only (outside of compaction) sequence of
// ConversationEntry values, owned exclusively by one Agent (spec §3
// Ownership & lifecycle).
type History struct {
	entries []models.ConversationEntry
}

// NewHistory returns an empty history.
func NewHistory() *History { return &History{} }

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// Entries returns the underlying slice. Callers must not retain it across
// a compaction, which replaces the slice.
func (h *History) Entries() []models.ConversationEntry { return h.entries }

// Append adds one entry.
func (h *History) Append(e models.ConversationEntry) { h.entries = append(h.entries, e) }

// AppendChat appends a plain chat message.
func (h *History) AppendChat(role models.Role, content string) {
	h.Append(models.NewChatEntry(role, content))
}

// ReplacePrefix swaps the first n entries for a single replacement entry,
// used by the compactor (§4.6.1). The tail (entries[n:]) is preserved
// byte-identically.
func (h *History) ReplacePrefix(n int, replacement models.ConversationEntry) {
	if n > len(h.entries) {
		n = len(h.entries)
	}
	tail := make([]models.ConversationEntry, len(h.entries)-n)
	copy(tail, h.entries[n:])
	h.entries = append([]models.ConversationEntry{replacement}, tail...)
}

// TrimTo hard-trims to the last maxSize entries, used as the compactor's
// fallback when summarization fails.
func (h *History) TrimTo(maxSize int) {
	if len(h.entries) <= maxSize {
		return
	}
	start := len(h.entries) - maxSize
	kept := make([]models.ConversationEntry, maxSize)
	copy(kept, h.entries[start:])
	h.entries = kept
}

// ClearStaleThinking drops ReasoningContent from every AssistantToolCalls
// and ChatMessage(assistant) entry, retaining their text. Spec §4.6 step 1:
// required by some Providers to avoid protocol errors, and to save
// tokens, since thinking traces are only meaningful within the turn that
// produced them.
func (h *History) ClearStaleThinking() {
	for i := range h.entries {
		e := &h.entries[i]
		switch e.Kind {
		case models.EntryAssistantToolCalls:
			e.ReasoningContent = ""
		case models.EntryChatMessage:
			if e.Chat != nil {
				e.Chat.ReasoningContent = ""
			}
		}
	}
}

// TrimDanglingToolCalls removes a trailing AssistantToolCalls entry that
// has no matching ToolResult entries following it — the cancellation
// policy chosen in SPEC_FULL.md §9 (Open Question 1): trim at the point
// of cancellation rather than leaving it for the next turn's clear-stale
// step, so the well-formedness invariant holds at all times.
func (h *History) TrimDanglingToolCalls() {
	if len(h.entries) == 0 {
		return
	}
	last := h.entries[len(h.entries)-1]
	if last.Kind == models.EntryAssistantToolCalls && len(last.ToolCalls) > 0 {
		h.entries = h.entries[:len(h.entries)-1]
		return
	}
	// Or an AssistantToolCalls followed by a partial run of ToolResults
	// (fewer than len(ToolCalls)): walk back to find it.
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].Kind == models.EntryAssistantToolCalls {
			got := 0
			for j := i + 1; j < len(h.entries); j++ {
				if h.entries[j].Kind == models.EntryToolResult {
					got++
				}
			}
			if got < len(h.entries[i].ToolCalls) {
				h.entries = h.entries[:i]
			}
			return
		}
		if h.entries[i].Kind != models.EntryToolResult {
			return
		}
	}
}

// WellFormed reports whether every ToolResult is preceded, within the same
// contiguous tool-call run, by an AssistantToolCalls holding a matching
// call id, in order — the invariant tested by spec §8.
func WellFormed(entries []models.ConversationEntry) bool {
	i := 0
	for i < len(entries) {
		e := entries[i]
		if e.Kind != models.EntryAssistantToolCalls {
			if e.Kind == models.EntryToolResult {
				return false // ToolResult without a preceding AssistantToolCalls
			}
			i++
			continue
		}
		wantIDs := make([]string, len(e.ToolCalls))
		for k, tc := range e.ToolCalls {
			wantIDs[k] = tc.ID
		}
		j := i + 1
		for k, id := range wantIDs {
			if j+k >= len(entries) {
				return false
			}
			r := entries[j+k]
			if r.Kind != models.EntryToolResult || r.Result == nil || r.Result.ToolCallID != id {
				return false
			}
		}
		i = j + len(wantIDs)
	}
	return true
}
