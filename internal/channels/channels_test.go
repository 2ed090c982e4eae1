package channels

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestStderrSendFormatsChannelAndText(t *testing.T) {
	var buf bytes.Buffer
	s := NewStderr(&buf)
	if err := s.Send(context.Background(), "daily", "done"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "[routine:daily]") || !strings.Contains(got, "done") {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRegistryResolveFallsBackForUnknownChannel(t *testing.T) {
	fallback := NewStderr(&bytes.Buffer{})
	reg := NewRegistry(fallback)
	if got := reg.Resolve("unregistered"); got != fallback {
		t.Fatal("expected the fallback channel for an unregistered name")
	}
}

func TestRegistryResolveReturnsRegisteredChannel(t *testing.T) {
	reg := NewRegistry(NewStderr(&bytes.Buffer{}))
	custom := NewStderr(&bytes.Buffer{})
	reg.Register(custom)
	if got := reg.Resolve("stderr"); got != custom {
		t.Fatal("expected the registered channel to win over the fallback")
	}
}

func TestRegistryRegisterIgnoresNil(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(nil)
	if got := reg.Resolve("anything"); got != nil {
		t.Fatalf("expected nil fallback to be returned untouched, got %v", got)
	}
}
