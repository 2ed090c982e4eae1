// Package shelltool implements the Shell built-in tool (spec §4.5): runs a
// single command line inside the workspace under a hard timeout, with
// output capped per stream and truncated past the cap.
package shelltool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

const (
	defaultTimeout = 30 * time.Second
	maxStreamBytes = 200 * 1024
	truncateNotice = "\n...[truncated]"
)

// Tool executes a shell command line within the configured workspace.
type Tool struct {
	workspace string
}

// New creates a Shell tool rooted at workspace.
func New(workspace string) *Tool {
	return &Tool{workspace: workspace}
}

func (t *Tool) Name() string { return "shell" }

func (t *Tool) Description() string {
	return "Run a single shell command line in the workspace with a 30s timeout."
}

func (t *Tool) ParametersSchema() []byte {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The command line to execute.",
			},
		},
		"required": []string{"command"},
	}
	b, _ := json.Marshal(schema)
	return b
}

func (t *Tool) ConfirmationRequired() bool { return true }

func (t *Tool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	if !policy.AllowsExecution() {
		return "shell execution is disabled in read-only mode", false
	}
	var in shellArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	if strings.TrimSpace(in.Command) == "" {
		return "command is required", false
	}
	if !policy.IsCommandAllowed(in.Command) {
		return fmt.Sprintf("command %q is not in the allowed command list", firstToken(in.Command)), false
	}
	return "", true
}

type shellArgs struct {
	Command string `json:"command"`
}

func (t *Tool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in shellArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &models.ToolResult{Success: false, Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", in.Command)
	cmd.Dir = t.workspace

	var stdout, stderr capBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += "[stderr]\n" + stderr.String()
	}

	if err != nil {
		if runCtx.Err() != nil {
			return &models.ToolResult{Success: false, Output: output, Error: "command timed out after 30s"}, nil
		}
		var exitErr *exec.ExitError
		if isExitError(err, &exitErr) {
			return &models.ToolResult{Success: false, Output: output, Error: fmt.Sprintf("exit status %d", exitErr.ExitCode())}, nil
		}
		return &models.ToolResult{Success: false, Output: output, Error: err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Output: output}, nil
}

func isExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// capBuffer caps writes at maxStreamBytes, appending a truncation marker
// once the limit is crossed rather than growing unbounded.
type capBuffer struct {
	buf       bytes.Buffer
	truncated bool
}

func (c *capBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if c.truncated {
		return n, nil
	}
	remaining := maxStreamBytes - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		c.buf.WriteString(truncateNotice)
		return n, nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.truncated = true
		c.buf.WriteString(truncateNotice)
		return n, nil
	}
	c.buf.Write(p)
	return n, nil
}

func (c *capBuffer) String() string { return c.buf.String() }
func (c *capBuffer) Len() int       { return c.buf.Len() }

var _ io.Writer = (*capBuffer)(nil)

func firstToken(cmd string) string {
	fields := strings.Fields(strings.TrimSpace(cmd))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
