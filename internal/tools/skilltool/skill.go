// Package skilltool implements the Skill built-in tool (spec §4.5): the
// model requests the full L2 body of a named skill to load a procedure on
// demand, rather than carrying every skill body in the system prompt.
package skilltool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// Registry is the narrow skill-lookup dependency this tool needs.
type Registry interface {
	Load(name string) (*models.SkillContent, bool)
}

// Tool loads a skill's body by name.
type Tool struct {
	skills Registry
}

// New creates the skill tool.
func New(skills Registry) *Tool { return &Tool{skills: skills} }

func (t *Tool) Name() string        { return "skill" }
func (t *Tool) Description() string { return "Load the full body of a named skill." }
func (t *Tool) ConfirmationRequired() bool { return false }

func (t *Tool) ParametersSchema() []byte {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []string{"name"},
	}
	b, _ := json.Marshal(schema)
	return b
}

type skillArgs struct {
	Name string `json:"name"`
}

func (t *Tool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	var in skillArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	if strings.TrimSpace(in.Name) == "" {
		return "name is required", false
	}
	return "", true
}

func (t *Tool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in skillArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if t.skills == nil {
		return fail("skill registry unavailable"), nil
	}
	content, ok := t.skills.Load(in.Name)
	if !ok {
		return fail(fmt.Sprintf("skill %q not found", in.Name)), nil
	}
	return &models.ToolResult{Success: true, Output: content.Body}, nil
}

func fail(msg string) *models.ToolResult {
	return &models.ToolResult{Success: false, Error: msg}
}
