package agent

import "errors"

// Error kinds from spec §7, mapped to sentinel errors checked with
// errors.Is by callers (cmd/rrclaw's REPL, the routine engine).
var (
	// ErrPolicyViolation marks a pre-validate denial, an out-of-workspace
	// path, a forbidden command, an SSRF target, or an injection block.
	// Never propagated as a fatal turn error — always converted to a
	// failed ToolResult.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrToolExecution marks a non-fatal tool failure (non-zero exit,
	// HTTP error status, file not found). Also never fatal.
	ErrToolExecution = errors.New("tool execution error")

	// ErrProviderTransient marks a retryable provider failure that has
	// exhausted retries and every fallback. Fatal for the turn.
	ErrProviderTransient = errors.New("provider transient error")

	// ErrProviderPermanent marks a non-retryable provider failure (bad
	// request, auth, not found, malformed response). Fatal for the turn.
	ErrProviderPermanent = errors.New("provider permanent error")

	// ErrRateLimited marks an ActionTracker denial. Represented as a
	// ToolResult within the round, never fatal.
	ErrRateLimited = errors.New("rate limited")

	// ErrParse marks a Phase 1 router or skill-frontmatter parse failure.
	// Degrades to Direct routing / skips the skill; never fatal.
	ErrParse = errors.New("parse error")

	// ErrMemory marks a Memory store/recall failure. Logged and the
	// conversation continues with an empty recall result.
	ErrMemory = errors.New("memory error")

	// ErrMaxIterations marks that the loop reached MAX_TOOL_ITERATIONS
	// without the model producing a final text-only response.
	ErrMaxIterations = errors.New("maximum tool iterations reached")
)
