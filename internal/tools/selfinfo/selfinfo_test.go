package selfinfo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

type fakeTracker struct {
	used     int
	cap      int
	nextSlot time.Duration
	atCap    bool
}

func (f *fakeTracker) Used() int { return f.used }
func (f *fakeTracker) Cap() int  { return f.cap }
func (f *fakeTracker) NextSlotIn() (time.Duration, bool) { return f.nextSlot, f.atCap }

func fullPolicy(t *testing.T) *security.Policy {
	t.Helper()
	pol, err := security.New(models.SecurityPolicy{Mode: models.ModeFull, Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("security.New: %v", err)
	}
	return pol
}

func TestSelfInfoToolAlwaysAllowed(t *testing.T) {
	tool := New(Info{Provider: "anthropic"}, &fakeTracker{})
	if _, ok := tool.PreValidate(nil, fullPolicy(t)); !ok {
		t.Fatal("self-info should never be denied")
	}
}

func TestSelfInfoToolMasksAPIKey(t *testing.T) {
	info := Info{Provider: "anthropic", Model: "claude", Workspace: "/ws", AutonomyMode: "full", APIKey: "sk-ant-abcdef123456"}
	tool := New(info, &fakeTracker{used: 3, cap: 10})

	result, err := tool.Execute(context.Background(), nil, fullPolicy(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Output), &payload); err != nil {
		t.Fatalf("expected valid JSON output: %v", err)
	}
	key, _ := payload["api_key"].(string)
	if key == info.APIKey {
		t.Fatal("the raw API key must never appear in self-info output")
	}
}

func TestMaskAPIKeyVariants(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abcd", "****"},
		{"ab", "****"},
		{"sk-ant-abcdef123456", "sk-a****"},
	}
	for _, c := range cases {
		if got := MaskAPIKey(c.in); got != c.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSelfInfoToolReportsRateLimitStats(t *testing.T) {
	tracker := &fakeTracker{used: 4, cap: 10, atCap: false}
	tool := New(Info{}, tracker)
	result, err := tool.Execute(context.Background(), nil, fullPolicy(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Output), &payload); err != nil {
		t.Fatalf("expected valid JSON output: %v", err)
	}
	if _, ok := payload["rate_limit"]; !ok {
		t.Fatalf("expected a rate_limit field in the payload, got %+v", payload)
	}
}
