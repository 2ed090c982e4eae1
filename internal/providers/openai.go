package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// OpenAIProvider implements Provider for the OpenAI-compatible dialect
// (spec §4.7 dialect i): system messages live inline, tool specs nest
// under function.parameters, streaming uses delta.content/delta.tool_calls
// fragments.
type OpenAIProvider struct {
	client *openai.Client
	name   string
}

// OpenAIConfig configures an OpenAIProvider. BaseURL lets the same
// dialect serve any OpenAI-compatible endpoint (local models, proxies).
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// Name overrides the provider identifier reported by Name(), useful
	// when this dialect is pointed at a non-OpenAI compatible endpoint
	// (e.g. "local" or "venice") for logging and the ReliableProvider
	// fallback chain.
	Name string
}

// NewOpenAIProvider constructs a Provider for the OpenAI dialect.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	occ := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		occ.BaseURL = cfg.BaseURL
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(occ), name: name}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) ChatWithTools(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	oaiReq, err := p.buildRequest(req, false)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.CreateChatCompletion(ctx, oaiReq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return &ChatResponse{}, nil
	}
	choice := resp.Choices[0]
	out := &ChatResponse{
		Text:         choice.Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	oaiReq, err := p.buildRequest(req, true)
	if err != nil {
		return nil, err
	}
	stream, err := p.client.CreateChatCompletionStream(ctx, oaiReq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		toolCalls := make(map[int]*models.ToolCall)
		order := make([]int, 0, 4)
		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					for _, idx := range order {
						if tc := toolCalls[idx]; tc != nil && tc.Name != "" {
							out <- StreamChunk{ToolCall: tc}
						}
					}
					out <- StreamChunk{Done: true}
					return
				}
				out <- StreamChunk{Err: classifyOpenAIError(err), Done: true}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				out <- StreamChunk{Text: delta.Content}
			}
			for _, tc := range delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				if toolCalls[idx] == nil {
					toolCalls[idx] = &models.ToolCall{}
					order = append(order, idx)
				}
				if tc.ID != "" {
					toolCalls[idx].ID = tc.ID
				}
				if tc.Function.Name != "" {
					toolCalls[idx].Name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					toolCalls[idx].Args = append(toolCalls[idx].Args, []byte(tc.Function.Arguments)...)
				}
			}
		}
	}()
	return out, nil
}

func (p *OpenAIProvider) buildRequest(req ChatRequest, stream bool) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "tool":
			for _, tr := range m.ToolResults {
				content := tr.Output
				if !tr.Success && tr.Error != "" {
					content = tr.Error
				}
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    content,
					ToolCallID: tr.ToolCallID,
				})
			}
		case "assistant":
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Args),
					},
				})
			}
			messages = append(messages, oaiMsg)
		default:
			messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		}
	}

	oaiReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		Stream:      stream,
	}
	if req.MaxTokens > 0 {
		oaiReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		oaiReq.Tools = make([]openai.Tool, len(req.Tools))
		for i, t := range req.Tools {
			var schema map[string]any
			if err := json.Unmarshal(t.Schema, &schema); err != nil {
				schema = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			oaiReq.Tools[i] = openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  schema,
				},
			}
		}
	}
	return oaiReq, nil
}

// classifyOpenAIError wraps an SDK error with a retryable/permanent
// classification based on HTTP status, consumed by ReliableProvider.
func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if isRetryableStatus(apiErr.HTTPStatusCode) {
			return fmt.Errorf("%w: %s", ErrTransient, err)
		}
		return fmt.Errorf("%w: %s", ErrPermanent, err)
	}
	return fmt.Errorf("%w: %s", ErrTransient, err)
}

func isRetryableStatus(code int) bool {
	if code == 429 {
		return true
	}
	return code >= 500 && code < 600
}

// statusFromMessage is a last-resort heuristic for dialects whose SDK
// does not expose a structured status code on its error type.
func statusFromMessage(msg string) (int, bool) {
	for _, code := range []string{"500", "502", "503", "504", "429"} {
		if strings.Contains(msg, code) {
			n, err := strconv.Atoi(code)
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
