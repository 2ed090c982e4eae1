// Package selfinfo implements the Self-info built-in tool (spec §4.5):
// runtime introspection (provider, model, paths, rate-limit stats, help)
// with API keys masked to first-four-characters-plus-stars.
package selfinfo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// Tracker is the narrow rate-limit dependency this tool reports on.
type Tracker interface {
	Used() int
	Cap() int
	NextSlotIn() (time.Duration, bool)
}

// Info is the static runtime description reported by the tool.
type Info struct {
	Provider     string
	Model        string
	Workspace    string
	AutonomyMode string
	APIKey       string // masked before reporting
}

// Tool reports runtime introspection data.
type Tool struct {
	info    Info
	tracker Tracker
}

// New creates the self_info tool.
func New(info Info, tracker Tracker) *Tool {
	return &Tool{info: info, tracker: tracker}
}

func (t *Tool) Name() string        { return "self_info" }
func (t *Tool) Description() string { return "Report runtime introspection: provider, model, paths, and rate-limit stats." }
func (t *Tool) ConfirmationRequired() bool { return false }

func (t *Tool) ParametersSchema() []byte {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	b, _ := json.Marshal(schema)
	return b
}

func (t *Tool) PreValidate(args []byte, policy *security.Policy) (string, bool) { return "", true }

func (t *Tool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	used, limit := 0, 0
	var nextSlot time.Duration
	if t.tracker != nil {
		used = t.tracker.Used()
		limit = t.tracker.Cap()
		nextSlot, _ = t.tracker.NextSlotIn()
	}
	payload, _ := json.MarshalIndent(map[string]any{
		"provider":      t.info.Provider,
		"model":         t.info.Model,
		"workspace":     t.info.Workspace,
		"autonomy_mode": t.info.AutonomyMode,
		"api_key":       MaskAPIKey(t.info.APIKey),
		"rate_limit": map[string]any{
			"used":              used,
			"cap":               limit,
			"next_slot_in_secs": int(nextSlot.Seconds()),
		},
	}, "", "  ")
	return &models.ToolResult{Success: true, Output: string(payload)}, nil
}

// MaskAPIKey masks a secret to its first four characters plus stars for
// this tool's output (spec §7's "must be masked everywhere" rule). The
// slog redaction handler does not call it; it writes [REDACTED] instead.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
