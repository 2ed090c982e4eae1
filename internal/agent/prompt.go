package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// PromptSections holds everything the assembler needs to compose the
// turn's system prompt (spec §4.11), already resolved by the loop.
type PromptSections struct {
	IdentityContext string
	BaseIdentity    string
	ActiveTools     []Tool
	Policy          *security.Policy
	RoutedSkills    string // concatenated L2 bodies (may be empty)
	MemoryEntries   []models.MemoryEntry
	Workspace       string
	Now             time.Time
	Provider        string
	Model           string
}

const defaultBaseIdentity = "You are RRClaw, a multi-channel AI agent with access to tools. Be concise and truthful."

// AssembleSystemPrompt composes the system prompt in the fixed order of
// spec §4.11: identity context, base identity line, active tool catalog,
// security-mode reminder, routed skill bodies, recalled memory,
// environment block, decision principles.
func AssembleSystemPrompt(s PromptSections) string {
	var b strings.Builder

	if strings.TrimSpace(s.IdentityContext) != "" {
		b.WriteString(s.IdentityContext)
		b.WriteString("\n\n")
	}

	base := s.BaseIdentity
	if base == "" {
		base = defaultBaseIdentity
	}
	b.WriteString(base)
	b.WriteString("\n\n")

	if len(s.ActiveTools) > 0 {
		b.WriteString("## Available tools\n")
		for _, t := range s.ActiveTools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
		}
		b.WriteString("\n")
	}

	if s.Policy != nil {
		b.WriteString("## Security mode\n")
		fmt.Fprintf(&b, "Autonomy mode: %s. ", s.Policy.Raw().Mode)
		switch s.Policy.Raw().Mode {
		case models.ModeReadOnly:
			b.WriteString("Mutating tools are denied; do not attempt them.\n\n")
		case models.ModeSupervised:
			b.WriteString("Mutating tools require the user's confirmation before they run.\n\n")
		case models.ModeFull:
			b.WriteString("Mutating tools run unattended.\n\n")
		default:
			b.WriteString("\n\n")
		}
	}

	if strings.TrimSpace(s.RoutedSkills) != "" {
		b.WriteString("## Loaded skills\n")
		b.WriteString(s.RoutedSkills)
		b.WriteString("\n\n")
	}

	if len(s.MemoryEntries) > 0 {
		b.WriteString("## Relevant memory\n")
		for _, m := range s.MemoryEntries {
			fmt.Fprintf(&b, "- [%s] %s\n", m.Category, m.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Environment\n")
	fmt.Fprintf(&b, "Workspace: %s\n", s.Workspace)
	fmt.Fprintf(&b, "Current time: %s\n", s.Now.Format(time.RFC3339))
	fmt.Fprintf(&b, "Provider/model: %s/%s\n\n", s.Provider, s.Model)

	b.WriteString("## Decision principles\n")
	b.WriteString("Prefer calling self_info over guessing about your own configuration. ")
	b.WriteString("Prefer asking the user a clarifying question over looping on tool calls without progress.\n")

	return b.String()
}
