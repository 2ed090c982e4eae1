package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// AnthropicProvider implements Provider for the Anthropic Messages
// dialect (spec §4.7 dialect ii): system is a top-level field, tool specs
// use input_schema, assistant content mixes text and tool_use blocks,
// tool results are passed back as user messages containing tool_result
// blocks.
type AnthropicProvider struct {
	client    anthropic.Client
	maxTokens int64
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	MaxTokens int64 // default 4096
}

// NewAnthropicProvider constructs a Provider for the Anthropic dialect.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), maxTokens: maxTokens}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) ChatWithTools(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}
	out := &ChatResponse{}
	if msg.Usage.InputTokens > 0 {
		out.InputTokens = int(msg.Usage.InputTokens)
	}
	if msg.Usage.OutputTokens > 0 {
		out.OutputTokens = int(msg.Usage.OutputTokens)
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += variant.Text
		case anthropic.ThinkingBlock:
			out.ReasoningContent += variant.Thinking
		case anthropic.ToolUseBlock:
			input, _ := json.Marshal(variant.Input)
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{ID: variant.ID, Name: variant.Name, Args: input})
		}
	}
	return out, nil
}

func (p *AnthropicProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	stream := p.client.Messages.NewStreaming(ctx, params)

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		type building struct {
			id, name string
			input    []byte
		}
		blocks := make(map[int64]*building)
		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if tu, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					blocks[variant.Index] = &building{id: tu.ID, name: tu.Name}
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					out <- StreamChunk{Text: delta.Text}
				case anthropic.ThinkingDelta:
					out <- StreamChunk{ReasoningContent: delta.Thinking}
				case anthropic.InputJSONDelta:
					if b := blocks[variant.Index]; b != nil {
						b.input = append(b.input, []byte(delta.PartialJSON)...)
					}
				}
			case anthropic.ContentBlockStopEvent:
				if b := blocks[variant.Index]; b != nil && b.name != "" {
					out <- StreamChunk{ToolCall: &models.ToolCall{ID: b.id, Name: b.name, Args: b.input}}
					delete(blocks, variant.Index)
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamChunk{Err: classifyAnthropicError(err), Done: true}
			return
		}
		out <- StreamChunk{Done: true}
	}()
	return out, nil
}

func (p *AnthropicProvider) buildParams(req ChatRequest) (anthropic.MessageNewParams, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func (p *AnthropicProvider) convertMessages(messages []Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		var content []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			content = append(content, anthropic.NewTextBlock(m.Content))
		}
		for _, tr := range m.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolCallID, toolResultText(tr), !tr.Success))
		}
		for _, tc := range m.ToolCalls {
			var input map[string]any
			if len(tc.Args) > 0 {
				if err := json.Unmarshal(tc.Args, &input); err != nil {
					return nil, fmt.Errorf("anthropic: invalid tool call args: %w", err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		if len(content) == 0 {
			continue
		}
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, nil
}

func toolResultText(tr models.ToolResult) string {
	if !tr.Success && tr.Error != "" {
		return tr.Error
	}
	return tr.Output
}

func (p *AnthropicProvider) convertTools(tools []ToolSpec) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid schema for %s: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, param)
	}
	return out, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if isRetryableStatus(apiErr.StatusCode) {
			return fmt.Errorf("%w: %s", ErrTransient, err)
		}
		return fmt.Errorf("%w: %s", ErrPermanent, err)
	}
	return fmt.Errorf("%w: %s", ErrTransient, err)
}
