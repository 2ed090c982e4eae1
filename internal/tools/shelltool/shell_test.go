package shelltool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

func newPolicy(t *testing.T, mode models.AutonomyMode, allowed ...string) *security.Policy {
	t.Helper()
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	pol, err := security.New(models.SecurityPolicy{Mode: mode, AllowedCommands: set, Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("security.New: %v", err)
	}
	return pol
}

func TestShellToolExecutesWhitelistedCommand(t *testing.T) {
	pol := newPolicy(t, models.ModeFull, "echo")
	tool := New(t.TempDir())

	args, _ := json.Marshal(map[string]string{"command": "echo hi"})
	if reason, ok := tool.PreValidate(args, pol); !ok {
		t.Fatalf("expected allow, got deny: %s", reason)
	}
	result, err := tool.Execute(context.Background(), args, pol)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || strings.TrimSpace(result.Output) != "hi" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

// Policy monotonicity (spec §8): ReadOnly denies Shell regardless of
// whitelist contents.
func TestShellToolDeniedInReadOnlyMode(t *testing.T) {
	pol := newPolicy(t, models.ModeReadOnly, "echo")
	tool := New(t.TempDir())

	args, _ := json.Marshal(map[string]string{"command": "echo hi"})
	if _, ok := tool.PreValidate(args, pol); ok {
		t.Fatal("Shell must be denied under ReadOnly mode even for whitelisted commands")
	}
}

func TestShellToolDeniesNonWhitelistedCommand(t *testing.T) {
	pol := newPolicy(t, models.ModeFull, "echo")
	tool := New(t.TempDir())

	args, _ := json.Marshal(map[string]string{"command": "rm -rf /"})
	reason, ok := tool.PreValidate(args, pol)
	if ok {
		t.Fatal("non-whitelisted command must be denied")
	}
	if !strings.Contains(reason, "allowed") {
		t.Fatalf("expected a whitelist-related deny reason, got %q", reason)
	}
}

func TestShellToolOutputTruncatesPastCap(t *testing.T) {
	pol := newPolicy(t, models.ModeFull)
	tool := New(t.TempDir())

	// Emit 300000 bytes, past the 200KB cap, with head and tr under the
	// unrestricted (empty whitelist) Full-mode policy.
	args, _ := json.Marshal(map[string]string{"command": "head -c 300000 /dev/zero | tr '\\0' 'a'"})
	result, err := tool.Execute(context.Background(), args, pol)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result.Output, "[truncated]") {
		t.Fatalf("expected output to be truncated past the 200KB cap, len=%d", len(result.Output))
	}
}
