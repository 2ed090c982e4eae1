package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rrclaw/rrclaw/internal/backoff"
	"github.com/rrclaw/rrclaw/internal/metrics"
)

// ErrTransient and ErrPermanent classify a dialect error for
// ReliableProvider's retry decision (spec §4.7, §7). Dialect
// implementations wrap the underlying SDK error with one of these via
// fmt.Errorf("%w: ...", ErrTransient|ErrPermanent, err).
var (
	ErrTransient = errors.New("transient provider error")
	ErrPermanent = errors.New("permanent provider error")
)

// IsRetryable reports whether err should trigger a retry: network,
// timeout, 5xx, 429. Errors not classified either way are treated as
// transient, matching spec §4.7's retryable list being the narrower
// (named) category and everything else defaulting to at-least-one-retry
// behavior for robustness against dialects that fail to classify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return false
	}
	return true
}

// ReliablePolicy configures ReliableProvider's retry/backoff.
type ReliablePolicy struct {
	MaxRetries     int // attempts beyond the first; total attempts = MaxRetries+1
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultReliablePolicy matches the spec's "initial_backoff *
// multiplier^attempt, capped at max_backoff" description with
// conservative defaults.
func DefaultReliablePolicy() ReliablePolicy {
	return ReliablePolicy{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

func (p ReliablePolicy) backoffPolicy() backoff.BackoffPolicy {
	return backoff.BackoffPolicy{
		InitialMs: float64(p.InitialBackoff.Milliseconds()),
		MaxMs:     float64(p.MaxBackoff.Milliseconds()),
		Factor:    p.Multiplier,
		Jitter:    0.2,
	}
}

// ReliableProvider decorates a primary Provider with retry-with-backoff
// and an ordered fallback chain (spec §4.7).
type ReliableProvider struct {
	primary   Provider
	fallbacks []Provider
	policy    ReliablePolicy
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewReliableProvider wraps primary with fallbacks, tried in order once
// the primary is exhausted.
func NewReliableProvider(primary Provider, policy ReliablePolicy, logger *slog.Logger, fallbacks ...Provider) *ReliableProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReliableProvider{primary: primary, fallbacks: fallbacks, policy: policy, logger: logger}
}

// WithMetrics attaches a Metrics sink, returning r for chaining at
// construction time.
func (r *ReliableProvider) WithMetrics(m *metrics.Metrics) *ReliableProvider {
	r.metrics = m
	return r
}

func (r *ReliableProvider) Name() string { return "reliable(" + r.primary.Name() + ")" }

func (r *ReliableProvider) ChatWithTools(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := r.attempt(ctx, r.primary, req)
	if err == nil {
		return resp, nil
	}
	for _, fb := range r.fallbacks {
		r.logger.Warn("provider falling back", slog.String("from", r.primary.Name()), slog.String("to", fb.Name()), slog.Any("error", err))
		resp, err = r.attempt(ctx, fb, req)
		if err == nil {
			return resp, nil
		}
	}
	return nil, fmt.Errorf("%w: all providers exhausted: %v", ErrTransient, err)
}

func (r *ReliableProvider) attempt(ctx context.Context, p Provider, req ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff.ComputeBackoff(r.policy.backoffPolicy(), attempt)
			if err := backoff.SleepWithContext(ctx, delay); err != nil {
				return nil, err
			}
		}
		started := time.Now()
		resp, err := p.ChatWithTools(ctx, req)
		r.metrics.ObserveProvider(p.Name(), req.Model, err, time.Since(started))
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
		r.logger.Warn("provider call failed, retrying", slog.String("provider", p.Name()), slog.Int("attempt", attempt+1), slog.Any("error", err))
	}
	return nil, lastErr
}

// streamChannelCapacity bounds the replay channel returned to callers
// (spec §9: "bounded channel, capacity >= 100").
const streamChannelCapacity = 100

// ChatStream streams from the primary, retrying a failed attempt (with
// any partial emissions discarded, per spec §4.7) before falling back. A
// failure can surface either as an error from the initial ChatStream call
// or as a StreamChunk.Err partway through the stream; both are retried
// identically, since the caller must never see a partial, then-abandoned
// stream from a failed attempt.
func (r *ReliableProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	chunks, err := r.attemptStream(ctx, r.primary, req)
	if err == nil {
		return replayStream(chunks), nil
	}
	for _, fb := range r.fallbacks {
		r.logger.Warn("provider falling back (stream)", slog.String("from", r.primary.Name()), slog.String("to", fb.Name()), slog.Any("error", err))
		chunks, err = r.attemptStream(ctx, fb, req)
		if err == nil {
			return replayStream(chunks), nil
		}
	}
	return nil, fmt.Errorf("%w: all providers exhausted: %v", ErrTransient, err)
}

// attemptStream runs p's stream to completion, buffering its chunks in
// memory before returning them, so a retry can discard a failed attempt's
// partial output in full rather than having already forwarded it to the
// caller.
func (r *ReliableProvider) attemptStream(ctx context.Context, p Provider, req ChatRequest) ([]StreamChunk, error) {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff.ComputeBackoff(r.policy.backoffPolicy(), attempt)
			if err := backoff.SleepWithContext(ctx, delay); err != nil {
				return nil, err
			}
		}
		started := time.Now()
		raw, err := p.ChatStream(ctx, req)
		if err != nil {
			r.metrics.ObserveProvider(p.Name(), req.Model, err, time.Since(started))
			lastErr = err
			if !IsRetryable(err) {
				return nil, err
			}
			r.logger.Warn("provider stream failed to start, retrying", slog.String("provider", p.Name()), slog.Int("attempt", attempt+1), slog.Any("error", err))
			continue
		}

		buffered, streamErr := drainStream(raw)
		r.metrics.ObserveProvider(p.Name(), req.Model, streamErr, time.Since(started))
		if streamErr == nil {
			return buffered, nil
		}
		lastErr = streamErr
		if !IsRetryable(streamErr) {
			return nil, streamErr
		}
		r.logger.Warn("provider stream failed mid-stream, retrying", slog.String("provider", p.Name()), slog.Int("attempt", attempt+1), slog.Any("error", streamErr))
	}
	return nil, lastErr
}

// drainStream collects every chunk from raw into a slice. If a chunk
// carries Err, the partial buffer gathered so far is discarded and the
// error is returned, per spec §4.7's "partial emissions from a failed
// attempt are discarded" requirement.
func drainStream(raw <-chan StreamChunk) ([]StreamChunk, error) {
	var buffered []StreamChunk
	for chunk := range raw {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		buffered = append(buffered, chunk)
	}
	return buffered, nil
}

// replayStream forwards a successful attempt's buffered chunks over a
// fresh channel, giving the caller the same streaming interface it would
// get from a single uninterrupted attempt.
func replayStream(buffered []StreamChunk) <-chan StreamChunk {
	out := make(chan StreamChunk, streamChannelCapacity)
	go func() {
		defer close(out)
		for _, chunk := range buffered {
			out <- chunk
		}
	}()
	return out
}
