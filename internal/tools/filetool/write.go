package filetool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// WriteTool writes a UTF-8 file into the workspace, creating parents.
type WriteTool struct {
	workspace string
}

// NewWrite creates a FileWrite tool rooted at workspace.
func NewWrite(workspace string) *WriteTool { return &WriteTool{workspace: workspace} }

func (t *WriteTool) Name() string { return "file_write" }
func (t *WriteTool) Description() string {
	return "Write a UTF-8 text file to the workspace, creating parent directories."
}

func (t *WriteTool) ParametersSchema() []byte {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "Path relative to the workspace."},
			"content": map[string]any{"type": "string", "description": "File contents to write."},
			"append":  map[string]any{"type": "boolean", "description": "Append instead of overwrite."},
		},
		"required": []string{"path", "content"},
	}
	b, _ := json.Marshal(schema)
	return b
}

func (t *WriteTool) ConfirmationRequired() bool { return true }

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Append  bool   `json:"append"`
}

func (t *WriteTool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	if !policy.AllowsExecution() {
		return "file writes are disabled in read-only mode", false
	}
	var in writeArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	if strings.TrimSpace(in.Path) == "" {
		return "path is required", false
	}
	if isDotfile(in.Path) && !policy.AllowDotfiles() {
		return "dotfiles are not writable under the current policy", false
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

func (t *WriteTool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in writeArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	resolved, err := resolve(t.workspace, in.Path)
	if err != nil {
		return fail(err.Error()), nil
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fail(fmt.Sprintf("create parent directories: %v", err)), nil
	}
	flags := os.O_CREATE | os.O_WRONLY
	if in.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return fail(fmt.Sprintf("open file: %v", err)), nil
	}
	defer f.Close()
	n, err := f.WriteString(in.Content)
	if err != nil {
		return fail(fmt.Sprintf("write file: %v", err)), nil
	}
	return &models.ToolResult{Success: true, Output: fmt.Sprintf("wrote %d bytes to %s", n, in.Path)}, nil
}
