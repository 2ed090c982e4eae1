// Package routinetool implements the Routine built-in tool (spec §4.5):
// exposes the cron scheduler to the model for create/list/delete/
// enable/disable/run/logs actions.
package routinetool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// Engine is the narrow scheduler dependency this tool needs, satisfied by
// internal/cron.Engine.
type Engine interface {
	Create(r models.Routine) error
	List() []models.Routine
	Delete(name string) error
	SetEnabled(name string, enabled bool) error
	RunNow(ctx context.Context, name string) (*models.RoutineExecution, error)
	Logs(name string, limit int) ([]models.RoutineExecution, error)
}

var allowedActions = map[string]bool{
	"create": true, "list": true, "delete": true,
	"enable": true, "disable": true, "run": true, "logs": true,
}

// mutatingActions require confirmation and are denied in ReadOnly mode.
var mutatingActions = map[string]bool{
	"create": true, "delete": true, "enable": true, "disable": true, "run": true,
}

// Tool exposes the routine scheduler to the model.
type Tool struct {
	engine Engine
}

// New creates the routine tool.
func New(engine Engine) *Tool { return &Tool{engine: engine} }

func (t *Tool) Name() string { return "routine" }
func (t *Tool) Description() string {
	return "Manage scheduled routines: create, list, delete, enable, disable, run, logs."
}
func (t *Tool) ConfirmationRequired() bool { return true }

func (t *Tool) ParametersSchema() []byte {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action":   map[string]any{"type": "string", "enum": []string{"create", "list", "delete", "enable", "disable", "run", "logs"}},
			"name":     map[string]any{"type": "string"},
			"schedule": map[string]any{"type": "string", "description": "5 or 6 field cron expression (create only)."},
			"message":  map[string]any{"type": "string", "description": "Message re-entered into the agent loop (create only)."},
			"channel":  map[string]any{"type": "string"},
			"limit":    map[string]any{"type": "integer", "minimum": 1, "description": "Logs action: max entries to return."},
		},
		"required": []string{"action"},
	}
	b, _ := json.Marshal(schema)
	return b
}

type routineArgs struct {
	Action   string `json:"action"`
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Message  string `json:"message"`
	Channel  string `json:"channel"`
	Limit    int    `json:"limit"`
}

func (t *Tool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	var in routineArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	action := strings.ToLower(strings.TrimSpace(in.Action))
	if !allowedActions[action] {
		return fmt.Sprintf("unsupported routine action %q", in.Action), false
	}
	if mutatingActions[action] && !policy.AllowsExecution() {
		return "routine mutations are disabled in read-only mode", false
	}
	if action != "list" && strings.TrimSpace(in.Name) == "" {
		return "name is required", false
	}
	if action == "create" {
		if strings.TrimSpace(in.Schedule) == "" {
			return "schedule is required", false
		}
		if strings.TrimSpace(in.Message) == "" {
			return "message is required", false
		}
	}
	return "", true
}

func (t *Tool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in routineArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if t.engine == nil {
		return fail("routine engine unavailable"), nil
	}
	action := strings.ToLower(strings.TrimSpace(in.Action))

	switch action {
	case "create":
		r := models.Routine{
			Name: in.Name, Schedule: in.Schedule, Message: in.Message,
			Channel: in.Channel, Enabled: true, Source: "dynamic",
		}
		if err := t.engine.Create(r); err != nil {
			return fail(fmt.Sprintf("create routine: %v", err)), nil
		}
		return ok(fmt.Sprintf("routine %q created", in.Name)), nil
	case "list":
		payload, _ := json.MarshalIndent(t.engine.List(), "", "  ")
		return &models.ToolResult{Success: true, Output: string(payload)}, nil
	case "delete":
		if err := t.engine.Delete(in.Name); err != nil {
			return fail(fmt.Sprintf("delete routine: %v", err)), nil
		}
		return ok(fmt.Sprintf("routine %q deleted", in.Name)), nil
	case "enable":
		if err := t.engine.SetEnabled(in.Name, true); err != nil {
			return fail(fmt.Sprintf("enable routine: %v", err)), nil
		}
		return ok(fmt.Sprintf("routine %q enabled", in.Name)), nil
	case "disable":
		if err := t.engine.SetEnabled(in.Name, false); err != nil {
			return fail(fmt.Sprintf("disable routine: %v", err)), nil
		}
		return ok(fmt.Sprintf("routine %q disabled", in.Name)), nil
	case "run":
		exec, err := t.engine.RunNow(ctx, in.Name)
		if err != nil {
			return fail(fmt.Sprintf("run routine: %v", err)), nil
		}
		payload, _ := json.MarshalIndent(exec, "", "  ")
		return &models.ToolResult{Success: true, Output: string(payload)}, nil
	case "logs":
		limit := in.Limit
		if limit <= 0 {
			limit = 10
		}
		entries, err := t.engine.Logs(in.Name, limit)
		if err != nil {
			return fail(fmt.Sprintf("fetch logs: %v", err)), nil
		}
		payload, _ := json.MarshalIndent(entries, "", "  ")
		return &models.ToolResult{Success: true, Output: string(payload)}, nil
	}
	return fail("unsupported action"), nil
}

func ok(msg string) *models.ToolResult   { return &models.ToolResult{Success: true, Output: msg} }
func fail(msg string) *models.ToolResult { return &models.ToolResult{Success: false, Error: msg} }
