package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/agentcore/shellpilot/internal/agent"
)

// BedrockProvider implements agent.LLMProvider over AWS Bedrock's
// ConverseStream API — the third C7 backend named in the domain stack,
// giving access to Claude/Titan/Llama/Mistral/Cohere models behind AWS
// IAM credentials instead of a per-vendor API key. Grounded on the
// teacher's internal/agent/providers/bedrock.go Converse event
// handling (ContentBlockStart/Delta/Stop, tool-input accumulation via
// strings.Builder), trimmed of its image-attachment plumbing (the spec
// data model carries no attachments) and adapted to
// ChatWithToolsStream.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	BaseProvider
	defaultModel string
}

// BedrockConfig configures a BedrockProvider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	MaxRetries      int
	RetryDelay      time.Duration
}

// NewBedrockProvider loads AWS credentials (explicit or default chain)
// and builds a bedrockruntime client.
func NewBedrockProvider(cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(context.Background(), config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		BaseProvider: NewBaseProvider(cfg.MaxRetries, cfg.RetryDelay),
		defaultModel: cfg.DefaultModel,
	}, nil
}

// Name implements agent.LLMProvider.
func (p *BedrockProvider) Name() string { return "bedrock" }

// ChatWithToolsStream implements agent.LLMProvider.
func (p *BedrockProvider) ChatWithToolsStream(
	ctx context.Context,
	req agent.CompletionRequest,
	onChunk func(agent.StreamDelta),
	onToolCalls func([]agent.ToolCall),
	onDone func(agent.ChatWithToolsResult),
	onError func(error),
) (func(), error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("%w: bedrock: %v", agent.ErrLLM, err)
	}

	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if req.MaxTokens > 0 {
		maxTokens := min(req.MaxTokens, math.MaxInt32)
		converseReq.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(maxTokens))}
	}
	if len(req.Tools) > 0 {
		toolConfig, err := p.convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("%w: bedrock: %v", agent.ErrLLM, err)
		}
		converseReq.ToolConfig = toolConfig
	}

	streamCtx, cancel := context.WithCancel(ctx)

	var out *bedrockruntime.ConverseStreamOutput
	retryErr := p.Retry(streamCtx, p.isRetryableError, func() error {
		var err error
		out, err = p.client.ConverseStream(streamCtx, converseReq)
		return err
	})
	if retryErr != nil {
		cancel()
		return nil, fmt.Errorf("%w: bedrock: %v", agent.ErrLLM, retryErr)
	}

	go func() {
		defer cancel()
		result, streamErr := p.consumeStream(out, onChunk)
		if streamErr != nil {
			if streamCtx.Err() != nil && len(result.Content) >= 10 {
				onToolCalls(result.ToolCalls)
				onDone(result)
				return
			}
			onError(fmt.Errorf("%w: bedrock: %v", agent.ErrLLM, streamErr))
			return
		}
		onToolCalls(result.ToolCalls)
		onDone(result)
	}()

	return cancel, nil
}

func (p *BedrockProvider) consumeStream(out *bedrockruntime.ConverseStreamOutput, onChunk func(agent.StreamDelta)) (agent.ChatWithToolsResult, error) {
	eventStream := out.GetStream()
	defer eventStream.Close()

	var (
		content      strings.Builder
		toolCalls    []agent.ToolCall
		currentCall  *agent.ToolCall
		currentInput strings.Builder
	)

	for event := range eventStream.Events() {
		switch ev := event.(type) {
		case *types.ConverseStreamOutputMemberContentBlockStart:
			if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
				currentCall = &agent.ToolCall{ID: aws.ToString(toolUse.Value.ToolUseId), Name: aws.ToString(toolUse.Value.Name)}
				currentInput.Reset()
			}

		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch delta := ev.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				if delta.Value != "" {
					content.WriteString(delta.Value)
					onChunk(agent.StreamDelta{Text: delta.Value})
				}
			case *types.ContentBlockDeltaMemberToolUse:
				if delta.Value.Input != nil {
					currentInput.WriteString(*delta.Value.Input)
				}
			}

		case *types.ConverseStreamOutputMemberContentBlockStop:
			if currentCall != nil {
				currentCall.Arguments = json.RawMessage(currentInput.String())
				toolCalls = append(toolCalls, *currentCall)
				currentCall = nil
			}

		case *types.ConverseStreamOutputMemberMessageStop:
			return agent.ChatWithToolsResult{Content: content.String(), ToolCalls: toolCalls}, nil
		}
	}

	if err := eventStream.Err(); err != nil {
		return agent.ChatWithToolsResult{Content: content.String(), ToolCalls: toolCalls}, err
	}
	return agent.ChatWithToolsResult{Content: content.String(), ToolCalls: toolCalls}, nil
}

func (p *BedrockProvider) convertMessages(messages []agent.Message) ([]types.Message, error) {
	result := make([]types.Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == agent.RoleSystem {
			continue
		}

		var content []types.ContentBlock

		switch msg.Role {
		case agent.RoleTool:
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(msg.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: msg.Content}},
				},
			})
		default:
			if msg.Content != "" {
				content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var input any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						return nil, fmt.Errorf("invalid tool call arguments for %q: %w", tc.Name, err)
					}
				} else {
					input = map[string]any{}
				}
				content = append(content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     document.NewLazyDocument(input),
					},
				})
			}
		}

		if len(content) == 0 {
			continue
		}

		role := types.ConversationRoleUser
		if msg.Role == agent.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
	}

	return result, nil
}

func (p *BedrockProvider) convertTools(tools []agent.ToolSpec) (*types.ToolConfiguration, error) {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		var schema any
		if len(t.Schema) > 0 {
			if err := json.Unmarshal(t.Schema, &schema); err != nil {
				return nil, fmt.Errorf("invalid schema for tool %q: %w", t.Name, err)
			}
		} else {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}, nil
}

// isRetryableError mirrors AWS Bedrock's documented transient-failure
// exception names alongside the generic HTTP/timeout patterns shared
// with the other backends.
func (p *BedrockProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "ThrottlingException") ||
		strings.Contains(msg, "TooManyRequestsException") ||
		strings.Contains(msg, "ServiceUnavailableException") {
		return true
	}
	lower := strings.ToLower(msg)
	for _, s := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
