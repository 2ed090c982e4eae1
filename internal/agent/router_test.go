package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rrclaw/rrclaw/internal/providers"
)

func TestRouteParsesSkillsAndTools(t *testing.T) {
	p := &fakeProvider{responses: []*providers.ChatResponse{
		{Text: `{"skills":["git-helper"],"tools":["git_ops"],"direct":false}`},
	}}
	d := Route(context.Background(), p, "router-model", "commit my changes", nil, nil)
	if d.NeedsClarification() {
		t.Fatal("should not need clarification")
	}
	if d.Direct {
		t.Fatal("expected a routed (non-direct) decision")
	}
	if len(d.Skills) != 1 || d.Skills[0] != "git-helper" {
		t.Fatalf("unexpected skills: %v", d.Skills)
	}
	if len(d.Tools) != 1 || d.Tools[0] != "git_ops" {
		t.Fatalf("unexpected tools: %v", d.Tools)
	}
}

func TestRouteParsesDirect(t *testing.T) {
	p := &fakeProvider{responses: []*providers.ChatResponse{
		{Text: `{"skills":[],"tools":[],"direct":true}`},
	}}
	d := Route(context.Background(), p, "router-model", "hello", nil, nil)
	if !d.Direct || d.NeedsClarification() {
		t.Fatalf("expected Direct decision, got %+v", d)
	}
}

func TestRouteParsesClarification(t *testing.T) {
	p := &fakeProvider{responses: []*providers.ChatResponse{
		{Text: `{"skills":[],"tools":[],"direct":false,"question":"which repository?"}`},
	}}
	d := Route(context.Background(), p, "router-model", "push it", nil, nil)
	if !d.NeedsClarification() {
		t.Fatal("expected a clarification decision")
	}
	if d.Question != "which repository?" {
		t.Fatalf("unexpected question: %q", d.Question)
	}
}

func TestRouteStripsCodeFences(t *testing.T) {
	p := &fakeProvider{responses: []*providers.ChatResponse{
		{Text: "```json\n" + `{"skills":[],"tools":[],"direct":true}` + "\n```"},
	}}
	d := Route(context.Background(), p, "router-model", "hi", nil, nil)
	if !d.Direct {
		t.Fatal("fenced JSON should still parse to Direct")
	}
}

func TestRouteExtractsFirstBalancedObjectFromSurroundingText(t *testing.T) {
	p := &fakeProvider{responses: []*providers.ChatResponse{
		{Text: `Sure thing! {"skills":[],"tools":["web"],"direct":false} -- hope that helps`},
	}}
	d := Route(context.Background(), p, "router-model", "look something up", nil, nil)
	if len(d.Tools) != 1 || d.Tools[0] != "web" {
		t.Fatalf("expected tools=[web] extracted from surrounding prose, got %+v", d)
	}
}

func TestRouteDegradesToDirectOnProviderError(t *testing.T) {
	p := &fakeProvider{errs: map[int]error{0: errors.New("network down")}}
	d := Route(context.Background(), p, "router-model", "hello", nil, nil)
	if !d.Direct || d.NeedsClarification() {
		t.Fatalf("a provider failure must degrade to Direct, got %+v", d)
	}
}

func TestRouteDegradesToDirectOnParseFailure(t *testing.T) {
	p := &fakeProvider{responses: []*providers.ChatResponse{
		{Text: "not json at all"},
	}}
	d := Route(context.Background(), p, "router-model", "hello", nil, nil)
	if !d.Direct || d.NeedsClarification() {
		t.Fatalf("a parse failure must degrade to Direct, got %+v", d)
	}
}

func TestExtractFirstBalancedObjectRespectsStringLiterals(t *testing.T) {
	s := `prefix {"question":"what about } braces?"} suffix`
	got := extractFirstBalancedObject(s)
	want := `{"question":"what about } braces?"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
