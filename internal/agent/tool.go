// Package agent implements the Agent execution loop (spec §4.6): the
// two-phase router, the tool-call iteration state machine, history
// compaction, and the system-prompt assembler. It defines the Tool
// interface that internal/tools/* implementations satisfy.
package agent

import (
	"context"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// Tool is the uniform capability contract described by spec §4.5: a tool
// advertises itself, pre-validates arguments against policy without side
// effects, declares whether it needs confirmation, and executes.
type Tool interface {
	Name() string
	Description() string
	// ParametersSchema returns the tool's JSON Schema for its arguments,
	// used both to advertise the tool to the model and to validate calls
	// before PreValidate runs.
	ParametersSchema() []byte

	// PreValidate is pure and side-effect-free. A non-empty deny reason
	// short-circuits execution before any confirmation prompt.
	PreValidate(args []byte, policy *security.Policy) (denyReason string, ok bool)

	// ConfirmationRequired is a static per-tool property; mutating tools
	// return true.
	ConfirmationRequired() bool

	// Execute runs the side effect. Non-fatal failures are encoded in the
	// returned ToolResult (Success=false, Error set); only a genuinely
	// fatal condition (policy bug, OOM) should return a non-nil error.
	Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error)
}

// ToolGroup is the static name→group mapping used by the router and the
// tool-routing logic of spec §4.13.
type ToolGroup string

const (
	GroupFileOps ToolGroup = "file_ops"
	GroupWeb     ToolGroup = "web"
	GroupMemory  ToolGroup = "memory"
	GroupConfig  ToolGroup = "config"
	GroupGitOps  ToolGroup = "git_ops"
	GroupRoutine ToolGroup = "routine"
	GroupMCP     ToolGroup = "mcp"
)

// Registry holds every tool known to the process, keyed by name, along
// with the group(s) each tool belongs to for router-driven activation.
type Registry struct {
	tools  map[string]Tool
	groups map[string][]ToolGroup
	order  []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		groups: make(map[string][]ToolGroup),
	}
}

// Register adds a tool under the given groups. Registering the same name
// twice replaces the previous entry (used by tests to stub tools).
func (r *Registry) Register(t Tool, groups ...ToolGroup) {
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
	r.groups[name] = groups
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns every registered tool name in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// InGroups reports whether tool name belongs to any of the given groups.
func (r *Registry) InGroups(name string, groups map[ToolGroup]struct{}) bool {
	for _, g := range r.groups[name] {
		if _, ok := groups[g]; ok {
			return true
		}
	}
	return false
}
