package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rrclaw/rrclaw/internal/providers"
)

// RouteDecision is the Phase 1 router's output (spec §4.10).
type RouteDecision struct {
	Skills   []string
	Tools    []string
	Direct   bool
	Question string // non-empty iff this is a NeedClarification decision
}

// NeedsClarification reports whether Phase 2 should be skipped in favor
// of emitting Question to the user.
func (d RouteDecision) NeedsClarification() bool { return d.Question != "" }

const routerTemperature = 0.1

// routerSystemPrompt builds Phase 1's system prompt: a fixed identity
// line, a hard no-tool-calls constraint, the skill L1 directory, the tool
// group names, and strict output grammar (spec §4.10).
func routerSystemPrompt(skillMeta []string, groups []string) string {
	var b strings.Builder
	b.WriteString("You are the routing stage of an AI agent runtime. ")
	b.WriteString("You never call tools and you never answer the user's request yourself; ")
	b.WriteString("you only decide what context the execution stage needs.\n\n")
	b.WriteString("Respond with exactly one JSON object and nothing else, one of:\n")
	b.WriteString(`  {"skills":["<name>",...],"tools":["<group>",...],"direct":false}` + "\n")
	b.WriteString(`  {"skills":[],"tools":[],"direct":true}` + "\n")
	b.WriteString(`  {"skills":[],"tools":[],"direct":false,"question":"<clarifying question>"}` + "\n\n")
	if len(skillMeta) > 0 {
		b.WriteString("Available skills (name: description):\n")
		for _, s := range skillMeta {
			b.WriteString("  - " + s + "\n")
		}
		b.WriteString("\n")
	}
	if len(groups) > 0 {
		b.WriteString("Available tool groups: " + strings.Join(groups, ", ") + "\n")
	}
	return b.String()
}

type routerOutput struct {
	Skills   []string `json:"skills"`
	Tools    []string `json:"tools"`
	Direct   bool     `json:"direct"`
	Question string   `json:"question,omitempty"`
}

// Route runs the Phase 1 router. A Provider-level failure or a parse
// failure both degrade to Direct (spec §4.10, tested by §8 "Router
// degradation") — Phase 1 never blocks a request.
func Route(ctx context.Context, provider providers.Provider, model, userMessage string, skillMeta []string, groups []string) RouteDecision {
	system := routerSystemPrompt(skillMeta, groups)
	resp, err := provider.ChatWithTools(ctx, providers.ChatRequest{
		Model:       model,
		System:      system,
		Messages:    []providers.Message{{Role: "user", Content: userMessage}},
		Temperature: routerTemperature,
	})
	if err != nil {
		return RouteDecision{Direct: true}
	}
	out, perr := parseRouterOutput(resp.Text)
	if perr != nil {
		return RouteDecision{Direct: true}
	}
	return RouteDecision{Skills: out.Skills, Tools: out.Tools, Direct: out.Direct, Question: out.Question}
}

// parseRouterOutput tolerantly extracts the router's JSON object: it
// strips markdown code fences and extracts the first balanced {...} span
// before unmarshaling, matching spec §4.10's tolerant-parsing contract.
func parseRouterOutput(text string) (*routerOutput, error) {
	cleaned := stripCodeFences(text)
	obj := extractFirstBalancedObject(cleaned)
	if obj == "" {
		return nil, fmt.Errorf("%w: no JSON object found in router output", ErrParse)
	}
	var out routerOutput
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &out, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop an optional language tag on the fence's opening line.
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractFirstBalancedObject returns the first top-level {...} span in s,
// respecting string literals so braces inside quoted strings do not
// confuse the brace count.
func extractFirstBalancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
