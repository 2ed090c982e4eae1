package providers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rrclaw/rrclaw/internal/backoff"
)

// scriptedProvider returns a scripted sequence of (response, error) pairs in
// order, one per ChatWithTools call, used to exercise ReliableProvider's
// retry/fallback decisions deterministically. streamErrs, when set,
// overrides ChatStream to emit a connect-time success followed by a
// mid-stream StreamChunk{Err} instead of the plain resps/errs script,
// letting tests distinguish connect-time from mid-stream stream failures.
type scriptedProvider struct {
	name       string
	resps      []*ChatResponse
	errs       []error
	streamErrs []error
	calls      int32
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) ChatWithTools(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	n := int(atomic.AddInt32(&p.calls, 1)) - 1
	if n >= len(p.errs) {
		return nil, fmt.Errorf("scriptedProvider %s: no more scripted calls", p.name)
	}
	if p.errs[n] != nil {
		return nil, p.errs[n]
	}
	return p.resps[n], nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	if p.streamErrs != nil {
		n := int(atomic.AddInt32(&p.calls, 1)) - 1
		if n >= len(p.streamErrs) {
			return nil, fmt.Errorf("scriptedProvider %s: no more scripted stream calls", p.name)
		}
		ch := make(chan StreamChunk, 3)
		if p.streamErrs[n] != nil {
			ch <- StreamChunk{Text: "partial"}
			ch <- StreamChunk{Err: p.streamErrs[n], Done: true}
		} else {
			ch <- StreamChunk{Text: "streamed ok"}
			ch <- StreamChunk{Done: true}
		}
		close(ch)
		return ch, nil
	}
	resp, err := p.ChatWithTools(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 2)
	ch <- StreamChunk{Text: resp.Text}
	ch <- StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) callCount() int { return int(atomic.LoadInt32(&p.calls)) }

func fastPolicy() ReliablePolicy {
	return ReliablePolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}
}

// Retry idempotence (spec §8): a provider that fails N-1 times then
// succeeds must have ChatWithTools return the eventual success.
func TestReliableProviderRetriesThenSucceeds(t *testing.T) {
	p := &scriptedProvider{
		name: "flaky",
		errs: []error{fmt.Errorf("%w: timeout", ErrTransient), fmt.Errorf("%w: 503", ErrTransient), nil},
		resps: []*ChatResponse{nil, nil, {Text: "eventual success"}},
	}
	rp := NewReliableProvider(p, fastPolicy(), nil)

	resp, err := rp.ChatWithTools(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("ChatWithTools: %v", err)
	}
	if resp.Text != "eventual success" {
		t.Fatalf("got %q, want %q", resp.Text, "eventual success")
	}
	if p.callCount() != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.callCount())
	}
}

// Non-retryable errors propagate immediately without exhausting retries.
func TestReliableProviderNonRetryablePropagatesImmediately(t *testing.T) {
	p := &scriptedProvider{
		name: "broken",
		errs: []error{fmt.Errorf("%w: bad request", ErrPermanent)},
	}
	rp := NewReliableProvider(p, fastPolicy(), nil)

	_, err := rp.ChatWithTools(context.Background(), ChatRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected a permanent error to propagate")
	}
	if p.callCount() != 1 {
		t.Fatalf("a non-retryable error must not be retried, got %d attempts", p.callCount())
	}
}

// On primary exhaustion, ReliableProvider tries each fallback in order.
func TestReliableProviderFallsBackAfterPrimaryExhaustion(t *testing.T) {
	primary := &scriptedProvider{
		name: "primary",
		errs: []error{
			fmt.Errorf("%w: timeout", ErrTransient),
			fmt.Errorf("%w: timeout", ErrTransient),
			fmt.Errorf("%w: timeout", ErrTransient),
			fmt.Errorf("%w: timeout", ErrTransient),
		},
	}
	fallback := &scriptedProvider{
		name:  "fallback",
		errs:  []error{nil},
		resps: []*ChatResponse{{Text: "from fallback"}},
	}
	policy := ReliablePolicy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2}
	rp := NewReliableProvider(primary, policy, nil, fallback)

	resp, err := rp.ChatWithTools(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("ChatWithTools: %v", err)
	}
	if resp.Text != "from fallback" {
		t.Fatalf("got %q, want response from fallback", resp.Text)
	}
	if primary.callCount() != 2 { // MaxRetries=1 -> 2 total attempts on primary
		t.Fatalf("expected 2 primary attempts, got %d", primary.callCount())
	}
	if fallback.callCount() != 1 {
		t.Fatalf("expected 1 fallback attempt, got %d", fallback.callCount())
	}
}

// All providers (primary + fallbacks) exhausted returns a transient error.
func TestReliableProviderAllExhaustedReturnsTransientError(t *testing.T) {
	primary := &scriptedProvider{name: "primary", errs: []error{fmt.Errorf("%w: down", ErrTransient), fmt.Errorf("%w: down", ErrTransient)}}
	fallback := &scriptedProvider{name: "fallback", errs: []error{fmt.Errorf("%w: down", ErrTransient), fmt.Errorf("%w: down", ErrTransient)}}
	policy := ReliablePolicy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2}
	rp := NewReliableProvider(primary, policy, nil, fallback)

	_, err := rp.ChatWithTools(context.Background(), ChatRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected an error once every provider is exhausted")
	}
}

// IsRetryable classification.
func TestIsRetryableClassification(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatal("nil error is not retryable")
	}
	if !IsRetryable(fmt.Errorf("%w: timeout", ErrTransient)) {
		t.Fatal("ErrTransient must be retryable")
	}
	if IsRetryable(fmt.Errorf("%w: bad request", ErrPermanent)) {
		t.Fatal("ErrPermanent must not be retryable")
	}
	if !IsRetryable(fmt.Errorf("some unclassified error")) {
		t.Fatal("an unclassified error should default to retryable per spec's robustness note")
	}
}

// Streaming retries a failed attempt and discards partial emissions before
// falling back, per spec §4.7.
func TestReliableProviderChatStreamRetriesBeforeSucceeding(t *testing.T) {
	p := &scriptedProvider{
		name:  "flaky-stream",
		errs:  []error{fmt.Errorf("%w: timeout", ErrTransient), nil},
		resps: []*ChatResponse{nil, {Text: "streamed ok"}},
	}
	rp := NewReliableProvider(p, fastPolicy(), nil)

	ch, err := rp.ChatStream(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	var text string
	for chunk := range ch {
		text += chunk.Text
	}
	if text != "streamed ok" {
		t.Fatalf("got %q, want %q", text, "streamed ok")
	}
}

// A mid-stream failure (StreamChunk.Err, as opposed to a ChatStream
// connect-time error) must also be retried, with the failed attempt's
// partial chunks discarded rather than forwarded to the caller, per spec
// §4.7.
func TestReliableProviderChatStreamRetriesAfterMidStreamFailure(t *testing.T) {
	p := &scriptedProvider{
		name:       "flaky-mid-stream",
		streamErrs: []error{fmt.Errorf("%w: connection reset", ErrTransient), nil},
	}
	rp := NewReliableProvider(p, fastPolicy(), nil)

	ch, err := rp.ChatStream(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	var text string
	for chunk := range ch {
		text += chunk.Text
	}
	if text != "streamed ok" {
		t.Fatalf("got %q, want only the successful attempt's chunks, no partial output from the failed first attempt", text)
	}
	if p.callCount() != 2 {
		t.Fatalf("expected 2 attempts, got %d", p.callCount())
	}
}

func TestBackoffComputeIsBoundedByMaxBackoff(t *testing.T) {
	policy := backoff.BackoffPolicy{InitialMs: 100, MaxMs: 300, Factor: 10, Jitter: 0}
	d := backoff.ComputeBackoff(policy, 5)
	if d > 300*time.Millisecond {
		t.Fatalf("backoff %v exceeds configured max of 300ms", d)
	}
}
