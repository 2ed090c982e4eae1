package agent

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rrclaw/rrclaw/internal/providers"
)

// fakeProvider is a scripted providers.Provider stand-in: each call to
// ChatWithTools/ChatStream consumes the next scripted response in order.
// Grounded on the teacher's loopTestProvider
// (haasonsaas-nexus/internal/agent/loop_test.go), simplified to a plain
// response queue since this package's Provider contract is narrower.
type fakeProvider struct {
	responses []*providers.ChatResponse
	errs      map[int]error // zero-indexed call number -> error instead of a response
	calls     int32
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) next(n int) (*providers.ChatResponse, error) {
	if p.errs != nil {
		if err, ok := p.errs[n]; ok {
			return nil, err
		}
	}
	if n >= len(p.responses) {
		return nil, errors.New("fakeProvider: no more scripted responses")
	}
	return p.responses[n], nil
}

func (p *fakeProvider) ChatWithTools(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	n := int(atomic.AddInt32(&p.calls, 1)) - 1
	return p.next(n)
}

func (p *fakeProvider) ChatStream(ctx context.Context, req providers.ChatRequest) (<-chan providers.StreamChunk, error) {
	resp, err := p.ChatWithTools(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan providers.StreamChunk, len(resp.ToolCalls)+2)
	if resp.Text != "" {
		ch <- providers.StreamChunk{Text: resp.Text}
	}
	for i := range resp.ToolCalls {
		ch <- providers.StreamChunk{ToolCall: &resp.ToolCalls[i]}
	}
	ch <- providers.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (p *fakeProvider) CallCount() int { return int(atomic.LoadInt32(&p.calls)) }
