package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rrclaw/rrclaw/internal/metrics"
	"github.com/rrclaw/rrclaw/internal/providers"
	"github.com/rrclaw/rrclaw/internal/ratelimit"
	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// ConfirmFunc asks the host whether a mutating tool call may proceed
// (spec §6's confirm callback). A nil ConfirmFunc is treated as "allow"
// in Supervised mode with an empty whitelist and "deny" otherwise.
type ConfirmFunc func(ctx context.Context, toolName string, args []byte) bool

const defaultMemoryRecallLimit = 5

// Config configures one Agent instance. Provider, Registry, Policy are
// required; the rest have safe defaults.
type Config struct {
	Provider providers.Provider
	Registry *Registry
	Policy   *security.Policy

	Memory   MemoryStore // may be nil (no-op) for routine executions that must not touch user memory
	Skills   SkillRegistry
	Identity IdentityLoader
	Confirm  ConfirmFunc

	Model        string
	RouterModel  string // falls back to Model when empty
	Temperature  float64
	BaseIdentity string
	SessionID    string // defaults to the calendar date (spec §9 Open Question 2)

	Logger  *slog.Logger
	Metrics *metrics.Metrics // optional; nil disables instrumentation
}

// Agent is one conversational actor driving the execution loop of spec
// §4.6. Its history, action tracker, routed-skill content, and confirm
// callback are exclusively owned by it (spec §3); it is not safe for
// concurrent use by more than one driving goroutine at a time.
type Agent struct {
	provider providers.Provider
	registry *Registry
	policy   *security.Policy
	memory   MemoryStore
	skills   SkillRegistry
	identity IdentityLoader
	confirm  ConfirmFunc
	injector *security.InjectionFilter
	tracker  *ratelimit.ActionTracker
	schemas  *schemaValidator

	model        string
	routerModel  string
	temperature  float64
	baseIdentity string
	sessionID    string
	logger       *slog.Logger
	metrics      *metrics.Metrics

	mu                 sync.Mutex // guards turnCount only; see note on Confinement below
	history            *History
	requestedTools     map[string]struct{}
	routedSkillContent string
	turnCount          int
}

// New constructs an Agent. Per-Agent confinement (spec §5) means the
// returned Agent must be driven by a single goroutine; the mutex here
// exists only to make turnCount safe if a host nonetheless inspects it
// from another goroutine (e.g. a status command), not to allow concurrent
// ProcessMessage calls.
func New(cfg Config) *Agent {
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = time.Now().Format("2006-01-02")
	}
	routerModel := cfg.RouterModel
	if routerModel == "" {
		routerModel = cfg.Model
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxActions := 0
	if cfg.Policy != nil {
		maxActions = cfg.Policy.MaxActionsPerHour()
	}
	return &Agent{
		provider:       cfg.Provider,
		registry:       cfg.Registry,
		policy:         cfg.Policy,
		memory:         cfg.Memory,
		skills:         cfg.Skills,
		identity:       cfg.Identity,
		confirm:        cfg.Confirm,
		injector:       security.NewInjectionFilter(),
		tracker:        ratelimit.NewActionTracker(maxActions, time.Hour),
		schemas:        newSchemaValidator(),
		model:          cfg.Model,
		routerModel:    routerModel,
		temperature:    cfg.Temperature,
		baseIdentity:   cfg.BaseIdentity,
		sessionID:      sessionID,
		logger:         logger,
		metrics:        cfg.Metrics,
		history:        NewHistory(),
		requestedTools: make(map[string]struct{}),
	}
}

// History exposes the agent's conversation history for inspection (e.g.
// by the REPL's /history command or tests).
func (a *Agent) History() *History { return a.history }

// Tracker exposes the action tracker for the Self-info tool.
func (a *Agent) Tracker() *ratelimit.ActionTracker { return a.tracker }

// ProcessMessage runs one full turn and returns the final assistant text.
func (a *Agent) ProcessMessage(ctx context.Context, userMessage string) (string, error) {
	return a.runTurn(ctx, userMessage, nil)
}

// ProcessMessageStream runs one turn, emitting StreamEvents to sink in
// strict order (Text/Thinking deltas, then exactly one Done). sink must
// not be closed by the caller until this call returns; ProcessMessageStream
// never closes it itself, so the caller can reuse the channel across
// turns.
func (a *Agent) ProcessMessageStream(ctx context.Context, userMessage string, sink chan<- models.StreamEvent) (string, error) {
	return a.runTurn(ctx, userMessage, sink)
}

func (a *Agent) runTurn(ctx context.Context, userMessage string, sink chan<- models.StreamEvent) (string, error) {
	// Step 1: clear stale thinking traces from prior turns.
	a.history.ClearStaleThinking()

	// Cancellation policy (SPEC_FULL §9): if the previous turn was
	// cancelled mid-tool-loop, trim any dangling AssistantToolCalls
	// before this turn's router/prompt logic runs.
	a.history.TrimDanglingToolCalls()

	// Step 2: Phase 1 router.
	decision := Route(ctx, a.provider, a.routerModel, userMessage, a.skillMetaStrings(), a.groupNames())
	if decision.NeedsClarification() {
		if sink != nil {
			emit(sink, models.StreamEvent{Kind: models.StreamText, Delta: decision.Question})
			emit(sink, models.StreamEvent{Kind: models.StreamDone, Response: decision.Question})
		}
		return decision.Question, nil
	}

	// Step 3: inject routed skill content.
	a.routedSkillContent = a.loadRoutedSkills(decision.Skills)

	// Step 4: recall memory.
	memEntries := a.recallMemory(ctx, userMessage)

	// Step 5: assemble system prompt, append user message.
	identityCtx := ""
	if a.identity != nil {
		if txt, err := a.identity.Load(); err == nil {
			identityCtx = txt
		} else {
			a.logger.Warn("identity load failed", slog.Any("error", err))
		}
	}
	activeTools := a.activeTools(decision)
	system := AssembleSystemPrompt(PromptSections{
		IdentityContext: identityCtx,
		BaseIdentity:    a.baseIdentity,
		ActiveTools:     activeTools,
		Policy:          a.policy,
		RoutedSkills:    a.routedSkillContent,
		MemoryEntries:   memEntries,
		Workspace:       a.workspace(),
		Now:             time.Now(),
		Provider:        a.provider.Name(),
		Model:           a.model,
	})
	a.history.AppendChat(models.RoleUser, userMessage)

	finalText, err := a.toolLoop(ctx, system, activeTools, sink)
	if err != nil {
		return "", err
	}

	// Step 8: compact if needed.
	MaybeCompact(ctx, a.history, a.provider, a.model)

	// Step 9: store a one-line session summary.
	a.mu.Lock()
	a.turnCount++
	turn := a.turnCount
	a.mu.Unlock()
	a.storeSessionSummary(ctx, turn, userMessage, finalText)

	if sink != nil {
		emit(sink, models.StreamEvent{Kind: models.StreamDone, Response: finalText})
	}
	return finalText, nil
}

// toolLoop runs step 6/7: iterative tool-call rounds up to
// MaxToolIterations.
func (a *Agent) toolLoop(ctx context.Context, system string, activeTools []Tool, sink chan<- models.StreamEvent) (string, error) {
	toolSpecs := make([]providers.ToolSpec, len(activeTools))
	for i, t := range activeTools {
		toolSpecs[i] = providers.ToolSpec{Name: t.Name(), Description: t.Description(), Schema: t.ParametersSchema()}
	}

	for iter := 0; iter < MaxToolIterations; iter++ {
		if err := ctx.Err(); err != nil {
			a.history.TrimDanglingToolCalls()
			return "", err
		}

		req := providers.ChatRequest{
			Model:       a.model,
			System:      system,
			Messages:    a.renderMessages(),
			Tools:       toolSpecs,
			Temperature: a.temperature,
		}

		resp, err := a.callProvider(ctx, req, sink)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrProviderTransient, err)
		}

		if len(resp.ToolCalls) == 0 {
			a.history.Append(models.NewChatEntry(models.RoleAssistant, resp.Text))
			if len(a.history.Entries()) > 0 {
				last := &a.history.Entries()[len(a.history.Entries())-1]
				if last.Chat != nil {
					last.Chat.ReasoningContent = resp.ReasoningContent
				}
			}
			return resp.Text, nil
		}

		a.history.Append(models.NewAssistantToolCallsEntry(resp.Text, resp.ReasoningContent, resp.ToolCalls))
		a.runToolRound(ctx, resp.ToolCalls)
	}

	msg := fmt.Sprintf("I reached the maximum of %d tool-call rounds for this turn without finishing; here is what I know so far.", MaxToolIterations)
	a.history.Append(models.NewChatEntry(models.RoleAssistant, msg))
	return msg, nil
}

func (a *Agent) callProvider(ctx context.Context, req providers.ChatRequest, sink chan<- models.StreamEvent) (*providers.ChatResponse, error) {
	if sink == nil {
		return a.provider.ChatWithTools(ctx, req)
	}
	chunks, err := a.provider.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	var text, reasoning string
	var calls []models.ToolCall
	for chunk := range chunks {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		if chunk.Text != "" {
			text += chunk.Text
			emit(sink, models.StreamEvent{Kind: models.StreamText, Delta: chunk.Text})
		}
		if chunk.ReasoningContent != "" {
			reasoning += chunk.ReasoningContent
			emit(sink, models.StreamEvent{Kind: models.StreamThinking, Delta: chunk.ReasoningContent})
		}
		if chunk.ToolCall != nil {
			calls = append(calls, *chunk.ToolCall)
		}
	}
	return &providers.ChatResponse{Text: text, ReasoningContent: reasoning, ToolCalls: calls}, nil
}

// emit blocks rather than dropping, matching the "no dropped events"
// requirement of spec §9.
func emit(sink chan<- models.StreamEvent, e models.StreamEvent) { sink <- e }

// runToolRound executes step 6c for every requested call in one round.
func (a *Agent) runToolRound(ctx context.Context, calls []models.ToolCall) {
	rateLimited := false
	for _, call := range calls {
		if rateLimited {
			a.appendResult(call.ID, false, "", fmt.Sprintf("[RateLimit] hourly action budget exhausted; try again later"))
			continue
		}

		if !a.tracker.TryRecord() {
			rateLimited = true
			wait, _ := a.tracker.NextSlotIn()
			a.appendResult(call.ID, false, "", fmt.Sprintf("[RateLimit] hourly action budget exhausted; next slot in %s", wait.Round(time.Second)))
			continue
		}

		tool, ok := a.registry.Get(call.Name)
		if !ok {
			a.appendResult(call.ID, false, "", a.unknownToolError(call.Name))
			a.requestedTools[call.Name] = struct{}{}
			continue
		}

		if err := a.schemas.Validate(call.Name, tool.ParametersSchema(), call.Args); err != nil {
			a.appendResult(call.ID, false, "", err.Error())
			continue
		}

		if reason, allowed := tool.PreValidate(call.Args, a.policy); !allowed {
			a.appendResult(call.ID, false, "", reason)
			continue
		}

		if a.policy != nil && a.policy.RequiresConfirmation(tool.ConfirmationRequired()) {
			granted := false
			if a.confirm != nil {
				granted = a.confirm(ctx, call.Name, call.Args)
			} else {
				granted = len(a.policy.Raw().AllowedCommands) == 0
			}
			if !granted {
				a.appendResult(call.ID, false, "", "denied by user")
				continue
			}
		}

		started := time.Now()
		result, err := tool.Execute(ctx, call.Args, a.policy)
		if err != nil {
			// Fatal: surface as a failed result too; the caller's turn
			// still continues since tool execution faults are non-fatal
			// to the conversation per spec §7, but we log at error level.
			a.metrics.ObserveTool(call.Name, false, time.Since(started))
			a.logger.Error("tool execution fatal error", slog.String("tool", call.Name), slog.Any("error", err))
			a.appendResult(call.ID, false, "", err.Error())
			continue
		}
		a.metrics.ObserveTool(call.Name, result.Success, time.Since(started))

		content := result.Output
		if a.policy != nil && a.policy.InjectionCheckEnabled() {
			check := a.injector.CheckToolResult(content)
			switch check.Severity {
			case security.SeverityBlock, security.SeverityWarn:
				a.logger.Warn("injection filter matched", slog.String("tool", call.Name), slog.String("severity", string(check.Severity)), slog.String("rule", check.Reason))
			case security.SeverityReview:
				a.logger.Info("injection filter flagged content for review", slog.String("tool", call.Name), slog.String("reason", check.Reason))
			}
			content = check.Sanitized
		}
		result.Output = content
		result.ToolCallID = call.ID
		a.history.Append(models.NewToolResultEntry(*result))
	}
}

func (a *Agent) appendResult(callID string, success bool, output, errMsg string) {
	a.history.Append(models.NewToolResultEntry(models.ToolResult{
		ToolCallID: callID,
		Success:    success,
		Output:     output,
		Error:      errMsg,
	}))
}

func (a *Agent) unknownToolError(name string) string {
	known := a.registry.Names()
	// On the first occurrence of this name this session, advertise every
	// known tool's schema so the next round has complete information
	// (spec §4.6.2b, §4.13).
	msg := fmt.Sprintf("unknown tool %q; available tools: %v", name, known)
	if _, seen := a.requestedTools[name]; !seen {
		for _, t := range a.registry.All() {
			msg += fmt.Sprintf("; %s schema: %s", t.Name(), t.ParametersSchema())
		}
	}
	return msg
}

// activeTools computes spec §4.13's routing union: group-matched tools
// plus any previously-requested-but-unexposed tool names, or every tool
// when Phase 1 routed Direct with no groups.
func (a *Agent) activeTools(decision RouteDecision) []Tool {
	if decision.Direct && len(decision.Tools) == 0 {
		return a.registry.All()
	}
	wanted := make(map[ToolGroup]struct{}, len(decision.Tools))
	for _, g := range decision.Tools {
		wanted[ToolGroup(g)] = struct{}{}
	}
	var out []Tool
	for _, name := range a.registry.Names() {
		if a.registry.InGroups(name, wanted) {
			t, _ := a.registry.Get(name)
			out = append(out, t)
			continue
		}
		if _, requested := a.requestedTools[name]; requested {
			t, _ := a.registry.Get(name)
			out = append(out, t)
		}
	}
	return out
}

func (a *Agent) groupNames() []string {
	return []string{"file_ops", "web", "memory", "config", "git_ops", "routine", "mcp"}
}

func (a *Agent) skillMetaStrings() []string {
	if a.skills == nil {
		return nil
	}
	var out []string
	for _, m := range a.skills.Meta() {
		out = append(out, fmt.Sprintf("%s: %s", m.Name, m.Description))
	}
	return out
}

func (a *Agent) loadRoutedSkills(names []string) string {
	if a.skills == nil || len(names) == 0 {
		return ""
	}
	var b []byte
	for _, name := range names {
		content, ok := a.skills.Load(name)
		if !ok {
			continue
		}
		if len(b) > 0 {
			b = append(b, '\n', '\n')
		}
		b = append(b, []byte(fmt.Sprintf("### %s\n%s", content.Name, content.Body))...)
	}
	return string(b)
}

func (a *Agent) recallMemory(ctx context.Context, query string) []models.MemoryEntry {
	if a.memory == nil {
		return nil
	}
	entries, err := a.memory.Recall(ctx, query, defaultMemoryRecallLimit)
	if err != nil {
		a.logger.Warn("memory recall failed", slog.Any("error", err))
		return nil
	}
	return entries
}

func (a *Agent) storeSessionSummary(ctx context.Context, turn int, userMessage, finalText string) {
	if a.memory == nil {
		return
	}
	key := fmt.Sprintf("session:%s:%d", a.sessionID, turn)
	summary := fmt.Sprintf("user: %s | assistant: %s", truncate(userMessage, 200), truncate(finalText, 200))
	if err := a.memory.Store(ctx, key, summary, "conversation"); err != nil {
		a.logger.Warn("session summary store failed", slog.Any("error", err))
	}
}

func (a *Agent) workspace() string {
	if a.policy == nil {
		return ""
	}
	return a.policy.Raw().Workspace
}

// renderMessages converts the History into the flattened Message slice a
// Provider dialect expects: AssistantToolCalls becomes one assistant
// message carrying ToolCalls; each following ToolResult becomes one tool
// message correlated by call id; each dialect implementation translates
// this neutral shape into its own wire format.
func (a *Agent) renderMessages() []providers.Message {
	entries := a.history.Entries()
	out := make([]providers.Message, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case models.EntryChatMessage:
			if e.Chat != nil {
				out = append(out, providers.Message{Role: string(e.Chat.Role), Content: e.Chat.Content, Reasoning: e.Chat.ReasoningContent})
			}
		case models.EntryAssistantToolCalls:
			out = append(out, providers.Message{Role: "assistant", Content: e.Text, Reasoning: e.ReasoningContent, ToolCalls: e.ToolCalls})
		case models.EntryToolResult:
			if e.Result != nil {
				out = append(out, providers.Message{Role: "tool", ToolResults: []models.ToolResult{*e.Result}})
			}
		}
	}
	return out
}

// NewToolCallID generates an id for a synthesized tool call (used only by
// tests and the routine engine, which never itself issues tool calls).
func NewToolCallID() string { return uuid.NewString() }
