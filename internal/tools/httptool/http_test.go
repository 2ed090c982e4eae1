package httptool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

func fullPolicy(t *testing.T) *security.Policy {
	t.Helper()
	pol, err := security.New(models.SecurityPolicy{Mode: models.ModeFull, Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("security.New: %v", err)
	}
	return pol
}

// SSRF (spec §8): for every loopback/link-local/private/shared IP and
// every localhost/.internal/.local hostname, pre-validation denies.
func TestHttpToolSSRFPreValidateDeniesDangerousTargets(t *testing.T) {
	pol := fullPolicy(t)
	tool := New(nil)

	targets := []string{
		"http://169.254.169.254/latest/meta-data",
		"http://localhost/",
		"http://127.0.0.1/",
		"http://10.0.0.5/",
		"http://172.16.0.5/",
		"http://192.168.1.5/",
		"http://100.64.0.5/",
		"http://[::1]/",
		"http://[fe80::1]/",
		"http://internal-service.internal/",
		"http://box.local/",
	}
	for _, url := range targets {
		args, _ := json.Marshal(map[string]string{"method": "GET", "url": url})
		if reason, ok := tool.PreValidate(args, pol); ok {
			t.Errorf("expected %q to be denied, got allow", url)
		} else if reason == "" {
			t.Errorf("expected a deny reason for %q", url)
		}
	}
}

func TestHttpToolAllowsPublicHTTPSTarget(t *testing.T) {
	pol := fullPolicy(t)
	tool := New(nil)
	args, _ := json.Marshal(map[string]string{"method": "GET", "url": "https://example.com/status"})
	if reason, ok := tool.PreValidate(args, pol); !ok {
		t.Fatalf("expected a public https target to be allowed, got deny: %s", reason)
	}
}

func TestHttpToolDeniesNonHTTPScheme(t *testing.T) {
	pol := fullPolicy(t)
	tool := New(nil)
	args, _ := json.Marshal(map[string]string{"method": "GET", "url": "file:///etc/passwd"})
	if _, ok := tool.PreValidate(args, pol); ok {
		t.Fatal("a non-http(s) scheme must be denied")
	}
}

func TestHttpToolDeniesUnsupportedMethod(t *testing.T) {
	pol := fullPolicy(t)
	tool := New(nil)
	args, _ := json.Marshal(map[string]string{"method": "TRACE", "url": "https://example.com"})
	if _, ok := tool.PreValidate(args, pol); ok {
		t.Fatal("an unsupported HTTP method must be denied")
	}
}

func TestHttpToolRespectsHostAllowlist(t *testing.T) {
	pol, err := security.New(models.SecurityPolicy{
		Mode:             models.ModeFull,
		Workspace:        t.TempDir(),
		AllowedHTTPHosts: map[string]struct{}{"example.com": {}},
	})
	if err != nil {
		t.Fatalf("security.New: %v", err)
	}
	tool := New(nil)

	allowed, _ := json.Marshal(map[string]string{"method": "GET", "url": "https://example.com/ok"})
	if _, ok := tool.PreValidate(allowed, pol); !ok {
		t.Fatal("expected the allow-listed host to pass")
	}

	denied, _ := json.Marshal(map[string]string{"method": "GET", "url": "https://not-allowed.com/ok"})
	if _, ok := tool.PreValidate(denied, pol); ok {
		t.Fatal("expected a host outside the allow-list to be denied")
	}
}

// ToolExecutionError (spec §7): a 4xx or 5xx response is a failed
// ToolResult the model can react to, not a successful one.
func TestHttpToolExecuteTreatsClientAndServerErrorsAsFailure(t *testing.T) {
	for _, status := range []int{400, 404, 429, 500, 503} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		tool := New(nil)
		args, _ := json.Marshal(map[string]string{"method": "GET", "url": srv.URL})
		result, err := tool.Execute(context.Background(), args, nil)
		srv.Close()
		if err != nil {
			t.Fatalf("status %d: Execute returned fatal error: %v", status, err)
		}
		if result.Success {
			t.Errorf("status %d: expected Success=false", status)
		}
		if result.Error == "" {
			t.Errorf("status %d: expected a non-empty Error", status)
		}
	}
}

func TestHttpToolExecuteTreatsSuccessStatusAsSuccess(t *testing.T) {
	for _, status := range []int{200, 201, 204, 301} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		tool := New(nil)
		args, _ := json.Marshal(map[string]string{"method": "GET", "url": srv.URL})
		result, err := tool.Execute(context.Background(), args, nil)
		srv.Close()
		if err != nil {
			t.Fatalf("status %d: Execute returned fatal error: %v", status, err)
		}
		if !result.Success {
			t.Errorf("status %d: expected Success=true, got error %q", status, result.Error)
		}
	}
}

func TestStripHTMLDropsScriptsAndTags(t *testing.T) {
	doc := `<html><head><style>.a{color:red}</style></head><body><script>alert(1)</script><p>Hello <b>world</b></p></body></html>`
	got := stripHTML(doc)
	if got != "Hello world" {
		t.Fatalf("got %q, want %q", got, "Hello world")
	}
}
