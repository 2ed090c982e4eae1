// Package configtool implements the Config built-in tool (spec §4.5):
// format-preserving reads/edits of the runtime's TOML configuration file.
// security.autonomy is pinned and cannot be raised by the model.
package configtool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// pinnedKey may only be read by the model, never written, regardless of
// autonomy mode: raising one's own execution ceiling from inside the
// loop would defeat the point of the security policy.
const pinnedKey = "security.autonomy"

// Tool reads and edits a TOML configuration file in place, preserving
// comments/formatting via go-toml's Tree API rather than a struct
// marshal round trip (SPEC_FULL.md §6).
type Tool struct {
	path string
}

// New creates a Config tool bound to a TOML file path.
func New(path string) *Tool { return &Tool{path: path} }

func (t *Tool) Name() string        { return "config" }
func (t *Tool) Description() string { return "Read or set a configuration entry." }

func (t *Tool) ParametersSchema() []byte {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{"type": "string", "enum": []string{"get", "set"}},
			"key":    map[string]any{"type": "string", "description": "Dotted TOML key path."},
			"value":  map[string]any{"description": "New value (set only)."},
		},
		"required": []string{"action", "key"},
	}
	b, _ := json.Marshal(schema)
	return b
}

func (t *Tool) ConfirmationRequired() bool { return true }

type configArgs struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Value  any    `json:"value"`
}

func (t *Tool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	var in configArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	action := strings.ToLower(strings.TrimSpace(in.Action))
	if action != "get" && action != "set" {
		return fmt.Sprintf("unsupported action %q", in.Action), false
	}
	if strings.TrimSpace(in.Key) == "" {
		return "key is required", false
	}
	if action == "set" {
		if !policy.AllowsExecution() {
			return "config changes are disabled in read-only mode", false
		}
		if strings.EqualFold(in.Key, pinnedKey) {
			return "security.autonomy is pinned and cannot be changed by the model", false
		}
	}
	return "", true
}

func (t *Tool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in configArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	action := strings.ToLower(strings.TrimSpace(in.Action))

	tree, err := toml.LoadFile(t.path)
	if err != nil {
		return fail(fmt.Sprintf("load config: %v", err)), nil
	}

	switch action {
	case "get":
		value := tree.Get(in.Key)
		if value == nil {
			return &models.ToolResult{Success: false, Error: fmt.Sprintf("key %q not found", in.Key)}, nil
		}
		payload, _ := json.Marshal(map[string]any{"key": in.Key, "value": value})
		return &models.ToolResult{Success: true, Output: string(payload)}, nil
	case "set":
		tree.Set(in.Key, in.Value)
		f, err := os.Create(t.path)
		if err != nil {
			return fail(fmt.Sprintf("open config for write: %v", err)), nil
		}
		defer f.Close()
		if _, err := tree.WriteTo(f); err != nil {
			return fail(fmt.Sprintf("write config: %v", err)), nil
		}
		return &models.ToolResult{Success: true, Output: fmt.Sprintf("set %s = %v", in.Key, in.Value)}, nil
	}
	return fail("unsupported action"), nil
}

func fail(msg string) *models.ToolResult {
	return &models.ToolResult{Success: false, Error: msg}
}
