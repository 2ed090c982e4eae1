// Package gittool implements the Git built-in tool (spec §4.5): a small
// enum of git subcommands run in the workspace, with --force/-f rejected
// pre-execution on push/checkout.
package gittool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

var allowedActions = map[string]bool{
	"status": true, "diff": true, "log": true, "add": true,
	"commit": true, "branch": true, "checkout": true, "push": true,
}

const commandTimeout = 30 * time.Second

// Tool runs a whitelisted git subcommand in the workspace.
type Tool struct {
	workspace string
}

// New creates a Git tool rooted at workspace.
func New(workspace string) *Tool { return &Tool{workspace: workspace} }

func (t *Tool) Name() string        { return "git" }
func (t *Tool) Description() string { return "Run a git subcommand in the workspace." }

func (t *Tool) ParametersSchema() []byte {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []string{"status", "diff", "log", "add", "commit", "branch", "checkout", "push"},
			},
			"args": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Additional free-form arguments for the subcommand.",
			},
		},
		"required": []string{"action"},
	}
	b, _ := json.Marshal(schema)
	return b
}

func (t *Tool) ConfirmationRequired() bool { return true }

type gitArgs struct {
	Action string   `json:"action"`
	Args   []string `json:"args"`
}

func (t *Tool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	var in gitArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	action := strings.ToLower(strings.TrimSpace(in.Action))
	if !allowedActions[action] {
		return fmt.Sprintf("unsupported git action %q", in.Action), false
	}
	if !policy.AllowsExecution() {
		return "git is disabled in read-only mode", false
	}
	if action == "push" || action == "checkout" {
		for _, a := range in.Args {
			if a == "--force" || a == "-f" {
				return fmt.Sprintf("%s --force is not permitted", action), false
			}
		}
	}
	return "", true
}

func (t *Tool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in gitArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	action := strings.ToLower(strings.TrimSpace(in.Action))

	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmdArgs := append([]string{action}, in.Args...)
	cmd := exec.CommandContext(runCtx, "git", cmdArgs...)
	cmd.Dir = t.workspace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		out := stdout.String()
		if stderr.Len() > 0 {
			if out != "" {
				out += "\n"
			}
			out += stderr.String()
		}
		return &models.ToolResult{Success: false, Output: out, Error: err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Output: stdout.String()}, nil
}

func fail(msg string) *models.ToolResult {
	return &models.ToolResult{Success: false, Error: msg}
}
