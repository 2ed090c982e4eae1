package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Severity classifies how a piece of tool output was treated by the
// InjectionFilter.
type Severity string

const (
	SeverityNone  Severity = "none"
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
	SeverityReview Severity = "review"
)

// CheckResult is the outcome of scanning one piece of content.
type CheckResult struct {
	Severity  Severity
	Reason    string
	Sanitized string
}

const safetyNotice = "[Content removed: matched a prompt-injection pattern and was not forwarded to the model.]"

// pattern pairs a compiled matcher with the human-readable rule name
// logged alongside a Block/Warn verdict.
type pattern struct {
	name string
	re   *regexp.Regexp
}

var blockPatterns = compilePatterns([]string{
	`ignore (all|the|any|previous|prior) (previous |prior )?instructions?`,
	`disregard (all|the|any|previous|prior) instructions?`,
	`you are now a`,
	`</?system>`,
	`\[system\]`,
	`忽略(之前|上面|以上)的?指令`,
	`你现在是一个`,
})

var controlCharPattern = regexp.MustCompile("[\x00\x0B\x0C]")

var warnPatterns = compilePatterns([]string{
	`\bdan mode\b`,
	`developer mode enabled`,
	`as an ai language model i`,
	`jailbreak`,
})

func compilePatterns(exprs []string) []pattern {
	out := make([]pattern, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, pattern{name: e, re: regexp.MustCompile("(?i)" + e)})
	}
	return out
}

// InjectionFilter scans tool output for prompt-injection attempts. It is
// stateless and safe for concurrent use.
type InjectionFilter struct{}

// NewInjectionFilter constructs a filter. It carries no configuration: the
// pattern lists are fixed, matching spec §4.3's authoritative rule sets.
func NewInjectionFilter() *InjectionFilter { return &InjectionFilter{} }

// CheckToolResult classifies tool output. Detection favors false negatives
// over false positives: when in doubt, content still reaches a model that
// can contextualize it (spec §4.3).
func (f *InjectionFilter) CheckToolResult(content string) CheckResult {
	if controlCharPattern.MatchString(content) {
		return CheckResult{Severity: SeverityBlock, Reason: "control characters", Sanitized: safetyNotice}
	}
	for _, p := range blockPatterns {
		if p.re.MatchString(content) {
			return CheckResult{Severity: SeverityBlock, Reason: p.name, Sanitized: safetyNotice}
		}
	}
	for _, p := range warnPatterns {
		if p.re.MatchString(content) {
			banner := fmt.Sprintf("[Safety Warning: matched rule %q]\n", p.name)
			return CheckResult{Severity: SeverityWarn, Reason: p.name, Sanitized: banner + content}
		}
	}
	if isReviewWorthy(content) {
		return CheckResult{Severity: SeverityReview, Reason: "high newline density", Sanitized: content}
	}
	return CheckResult{Severity: SeverityNone, Sanitized: content}
}

// isReviewWorthy implements the §4.3 Review trigger: length >= 300 bytes
// and more than one newline per 40 bytes.
func isReviewWorthy(content string) bool {
	if len(content) < 300 {
		return false
	}
	newlines := strings.Count(content, "\n")
	return float64(newlines) > float64(len(content))/40.0
}

// CheckUserInput never blocks: the user is the trust principal. It only
// reports a Warn-level finding for visibility.
func (f *InjectionFilter) CheckUserInput(content string) CheckResult {
	for _, p := range warnPatterns {
		if p.re.MatchString(content) {
			return CheckResult{Severity: SeverityWarn, Reason: p.name, Sanitized: content}
		}
	}
	return CheckResult{Severity: SeverityNone, Sanitized: content}
}

// isASCII reports whether every rune in s is in the ASCII range; used only
// to document that case-insensitivity is ASCII-scoped per spec §4.3 (Go's
// (?i) flag already folds ASCII case; non-ASCII patterns above are matched
// literally).
func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
