package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// BedrockProvider implements Provider over AWS Bedrock's Converse API. It
// exists in the ReliableProvider fallback chain to exercise a third
// dialect with a distinct auth/transport path (SigV4 request signing via
// the AWS SDK's credential chain) from the two HTTP-keyed dialects
// (SPEC_FULL.md §11).
type BedrockProvider struct {
	client *bedrockruntime.Client
	region string
}

// BedrockConfig configures a BedrockProvider. Region defaults to
// us-east-1; credentials come from the default AWS credential chain
// unless AccessKeyID/SecretAccessKey are set.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewBedrockProvider constructs a Provider over AWS Bedrock.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     cfg.AccessKeyID,
					SecretAccessKey: cfg.SecretAccessKey,
					SessionToken:    cfg.SessionToken,
				}, nil
			}),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}
	return &BedrockProvider{client: bedrockruntime.NewFromConfig(awsCfg), region: region}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) ChatWithTools(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	input, err := p.buildInput(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, classifyBedrockError(err)
	}
	out := &ChatResponse{}
	if resp.Usage != nil {
		out.InputTokens = int(aws.ToInt32(resp.Usage.InputTokens))
		out.OutputTokens = int(aws.ToInt32(resp.Usage.OutputTokens))
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return out, nil
	}
	for _, block := range msg.Value.Content {
		switch variant := block.(type) {
		case *types.ContentBlockMemberText:
			out.Text += variant.Value
		case *types.ContentBlockMemberToolUse:
			input, _ := json.Marshal(variant.Value.Input)
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:   aws.ToString(variant.Value.ToolUseId),
				Name: aws.ToString(variant.Value.Name),
				Args: input,
			})
		}
	}
	return out, nil
}

func (p *BedrockProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	converseReq, err := p.buildInput(req)
	if err != nil {
		return nil, err
	}
	streamInput := &bedrockruntime.ConverseStreamInput{
		ModelId:         converseReq.ModelId,
		Messages:        converseReq.Messages,
		System:          converseReq.System,
		InferenceConfig: converseReq.InferenceConfig,
		ToolConfig:      converseReq.ToolConfig,
	}
	resp, err := p.client.ConverseStream(ctx, streamInput)
	if err != nil {
		return nil, classifyBedrockError(err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		stream := resp.GetStream()
		defer stream.Close()
		type building struct {
			id, name string
			input    []byte
		}
		var current *building
		for event := range stream.Events() {
			switch variant := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if tu, ok := variant.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					current = &building{id: aws.ToString(tu.Value.ToolUseId), name: aws.ToString(tu.Value.Name)}
				}
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := variant.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					out <- StreamChunk{Text: delta.Value}
				case *types.ContentBlockDeltaMemberToolUse:
					if current != nil {
						current.input = append(current.input, []byte(aws.ToString(delta.Value.Input))...)
					}
				}
			case *types.ConverseStreamOutputMemberContentBlockStop:
				if current != nil {
					out <- StreamChunk{ToolCall: &models.ToolCall{ID: current.id, Name: current.name, Args: current.input}}
					current = nil
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				// no-op: message_stop carries only the stop reason
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamChunk{Err: classifyBedrockError(err), Done: true}
			return
		}
		out <- StreamChunk{Done: true}
	}()
	return out, nil
}

func (p *BedrockProvider) buildInput(req ChatRequest) (*bedrockruntime.ConverseInput, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(req.Model),
		Messages: messages,
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temp := float32(req.Temperature)
	input.InferenceConfig = &types.InferenceConfiguration{
		MaxTokens:   aws.Int32(int32(maxTokens)),
		Temperature: aws.Float32(temp),
	}
	if len(req.Tools) > 0 {
		var specs []types.Tool
		for _, t := range req.Tools {
			var schemaDoc map[string]any
			if err := json.Unmarshal(t.Schema, &schemaDoc); err != nil {
				schemaDoc = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			specs = append(specs, &types.ToolMemberToolSpec{
				Value: types.ToolSpecification{
					Name:        aws.String(t.Name),
					Description: aws.String(t.Description),
					InputSchema: &types.ToolInputSchemaMemberJson{Value: document(schemaDoc)},
				},
			})
		}
		input.ToolConfig = &types.ToolConfiguration{Tools: specs}
	}
	return input, nil
}

func (p *BedrockProvider) convertMessages(messages []Message) ([]types.Message, error) {
	var out []types.Message
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		var blocks []types.ContentBlock
		if m.Content != "" {
			blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Content})
		}
		for _, tr := range m.ToolResults {
			status := types.ToolResultStatusSuccess
			if !tr.Success {
				status = types.ToolResultStatusError
			}
			blocks = append(blocks, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Status:    status,
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: toolResultText(tr)}},
				},
			})
		}
		for _, tc := range m.ToolCalls {
			var input map[string]any
			if len(tc.Args) > 0 {
				if err := json.Unmarshal(tc.Args, &input); err != nil {
					return nil, fmt.Errorf("bedrock: invalid tool call args: %w", err)
				}
			}
			blocks = append(blocks, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document(input),
				},
			})
		}
		if len(blocks) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}
	return out, nil
}

// document adapts a plain map to the SDK's smithydocument.Marshaler via
// the generic document helper; Bedrock's Converse API represents tool
// input/schema as an opaque JSON document.
func document(v map[string]any) bedrockDocument {
	if v == nil {
		v = map[string]any{}
	}
	return bedrockDocument{v: v}
}

type bedrockDocument struct{ v map[string]any }

func (d bedrockDocument) MarshalSmithyDocument() ([]byte, error) { return json.Marshal(d.v) }
func (d *bedrockDocument) UnmarshalSmithyDocument(b []byte) error {
	return json.Unmarshal(b, &d.v)
}

func classifyBedrockError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailableException", "ModelTimeoutException", "InternalServerException":
			return fmt.Errorf("%w: %s", ErrTransient, err)
		}
		return fmt.Errorf("%w: %s", ErrPermanent, err)
	}
	return fmt.Errorf("%w: %s", ErrTransient, err)
}
