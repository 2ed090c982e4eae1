package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rrclaw/rrclaw/internal/providers"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// Tunable bounds from spec §4.6.1.
const (
	MaxToolIterations      = 10
	CompactThreshold       = 40
	CompactWindow          = 30
	CompactSummaryMaxChars = 1500
	MaxHistorySize         = 50
)

const summaryPrefix = "[Conversation Summary]"

// MaybeCompact compacts h in place when its length reaches
// CompactThreshold, replacing the earliest safe-cut prefix with one
// system message summarizing it. The recent tail is always preserved
// byte-identically (spec §8 "Compaction contract").
func MaybeCompact(ctx context.Context, h *History, provider providers.Provider, model string) {
	if h.Len() < CompactThreshold {
		return
	}
	cut := safeCutIndex(h.Entries(), CompactWindow)
	if cut <= 0 {
		return
	}

	transcript := renderTranscriptForSummary(h.Entries()[:cut])
	summary, err := summarize(ctx, provider, model, transcript)
	if err != nil || strings.TrimSpace(summary) == "" {
		h.TrimTo(MaxHistorySize)
		return
	}
	if len(summary) > CompactSummaryMaxChars {
		summary = summary[:CompactSummaryMaxChars]
	}
	h.ReplacePrefix(cut, models.NewChatEntry(models.RoleSystem, summaryPrefix+" "+summary))
}

// safeCutIndex returns the largest index <= window whose boundary does
// not split an AssistantToolCalls/ToolResult pair: it searches backward
// from window for a plain ChatMessage boundary (or index 0).
func safeCutIndex(entries []models.ConversationEntry, window int) int {
	if window > len(entries) {
		window = len(entries)
	}
	for i := window; i > 0; i-- {
		if i == len(entries) {
			return i
		}
		prev := entries[i-1]
		next := entries[i]
		// A cut is safe when it does not land between an
		// AssistantToolCalls and any of its ToolResults.
		if prev.Kind == models.EntryAssistantToolCalls && next.Kind == models.EntryToolResult {
			continue
		}
		if prev.Kind == models.EntryToolResult && next.Kind == models.EntryToolResult {
			// Could still be mid-run of the same tool-call batch; only
			// safe if the preceding AssistantToolCalls' run is fully
			// consumed by entries[:i]. Conservatively keep searching
			// backward to a ChatMessage boundary instead.
			continue
		}
		if prev.Kind == models.EntryChatMessage {
			return i
		}
	}
	return 0
}

func renderTranscriptForSummary(entries []models.ConversationEntry) string {
	var b strings.Builder
	for _, e := range entries {
		switch e.Kind {
		case models.EntryChatMessage:
			if e.Chat != nil {
				fmt.Fprintf(&b, "%s: %s\n", e.Chat.Role, truncate(e.Chat.Content, 500))
			}
		case models.EntryAssistantToolCalls:
			fmt.Fprintf(&b, "assistant (tool calls): %s\n", truncate(e.Text, 500))
		case models.EntryToolResult:
			if e.Result != nil {
				fmt.Fprintf(&b, "tool result: %s\n", truncate(e.Result.Output, 200))
			}
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func summarize(ctx context.Context, provider providers.Provider, model, transcript string) (string, error) {
	resp, err := provider.ChatWithTools(ctx, providers.ChatRequest{
		Model:       model,
		System:      "Summarize the following conversation transcript in under 1500 characters. Be factual and dense; capture decisions, open tasks, and tool outcomes.",
		Messages:    []providers.Message{{Role: "user", Content: transcript}},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
