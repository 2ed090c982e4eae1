package filetool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

const maxReadBytes = 200 * 1024

// ReadTool reads a UTF-8 file from the workspace.
type ReadTool struct {
	workspace string
}

// NewRead creates a FileRead tool rooted at workspace.
func NewRead(workspace string) *ReadTool { return &ReadTool{workspace: workspace} }

func (t *ReadTool) Name() string        { return "file_read" }
func (t *ReadTool) Description() string { return "Read a UTF-8 text file from the workspace." }

func (t *ReadTool) ParametersSchema() []byte {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Path relative to the workspace."},
		},
		"required": []string{"path"},
	}
	b, _ := json.Marshal(schema)
	return b
}

func (t *ReadTool) ConfirmationRequired() bool { return false }

type readArgs struct {
	Path string `json:"path"`
}

func (t *ReadTool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	var in readArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	if strings.TrimSpace(in.Path) == "" {
		return "path is required", false
	}
	if isDotfile(in.Path) && !policy.AllowDotfiles() {
		return "dotfiles are not accessible under the current policy", false
	}
	resolved, err := resolve(t.workspace, in.Path)
	if err != nil {
		return err.Error(), false
	}
	if !policy.IsPathAllowed(resolved) {
		return "path is outside the permitted workspace", false
	}
	return "", true
}

func (t *ReadTool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in readArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	resolved, err := resolve(t.workspace, in.Path)
	if err != nil {
		return fail(err.Error()), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return fail(fmt.Sprintf("read file: %v", err)), nil
	}
	truncated := false
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
		truncated = true
	}
	if !utf8.Valid(data) {
		return fail("file is not valid UTF-8"), nil
	}
	content := string(data)
	if truncated {
		content += "\n...[truncated]"
	}
	return &models.ToolResult{Success: true, Output: content}, nil
}

func fail(msg string) *models.ToolResult {
	return &models.ToolResult{Success: false, Error: msg}
}
