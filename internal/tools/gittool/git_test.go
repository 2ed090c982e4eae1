package gittool

import (
	"context"
	"encoding/json"
	"os/exec"
	"testing"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

func newPolicy(t *testing.T, mode models.AutonomyMode) *security.Policy {
	t.Helper()
	pol, err := security.New(models.SecurityPolicy{Mode: mode, Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("security.New: %v", err)
	}
	return pol
}

// Policy monotonicity (spec §8, spec §4.5 "ReadOnly rejects all"): every
// git action, including read-only ones like status, is denied under
// ReadOnly mode.
func TestGitToolAllActionsDeniedInReadOnly(t *testing.T) {
	pol := newPolicy(t, models.ModeReadOnly)
	tool := New(t.TempDir())
	for _, action := range []string{"status", "diff", "log", "add", "commit", "branch", "checkout", "push"} {
		args, _ := json.Marshal(map[string]any{"action": action})
		if _, ok := tool.PreValidate(args, pol); ok {
			t.Errorf("action %q must be denied under ReadOnly mode", action)
		}
	}
}

func TestGitToolRejectsForcePushAndCheckout(t *testing.T) {
	pol := newPolicy(t, models.ModeFull)
	tool := New(t.TempDir())

	push, _ := json.Marshal(map[string]any{"action": "push", "args": []string{"origin", "main", "--force"}})
	if _, ok := tool.PreValidate(push, pol); ok {
		t.Fatal("push --force must be rejected pre-execution")
	}

	checkout, _ := json.Marshal(map[string]any{"action": "checkout", "args": []string{"-f", "main"}})
	if _, ok := tool.PreValidate(checkout, pol); ok {
		t.Fatal("checkout -f must be rejected pre-execution")
	}
}

func TestGitToolRejectsUnknownAction(t *testing.T) {
	pol := newPolicy(t, models.ModeFull)
	tool := New(t.TempDir())
	args, _ := json.Marshal(map[string]any{"action": "rebase"})
	if _, ok := tool.PreValidate(args, pol); ok {
		t.Fatal("an action outside the enum must be denied")
	}
}

func TestGitToolExecutesStatus(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	ws := t.TempDir()
	initCmd := exec.Command("git", "init")
	initCmd.Dir = ws
	if err := initCmd.Run(); err != nil {
		t.Skipf("git init failed: %v", err)
	}

	pol := newPolicy(t, models.ModeFull)
	tool := New(ws)
	args, _ := json.Marshal(map[string]any{"action": "status"})
	result, err := tool.Execute(context.Background(), args, pol)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
}
