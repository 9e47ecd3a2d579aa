// Package providers implements C7 LLM Client backends (spec.md §4.7):
// one agent.LLMProvider per wire protocol, each encapsulating its SSE
// framing and tool-call accumulation behind a single streaming call.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/agentcore/shellpilot/internal/agent"
)

// AnthropicProvider implements agent.LLMProvider over Anthropic's
// Messages streaming API. Grounded on the teacher's
// internal/agent/providers/anthropic.go SSE state machine (content
// block start/delta/stop handling, input_json_delta accumulation via
// strings.Builder), adapted from a channel-of-chunks interface to the
// spec's callback-driven ChatWithToolsStream and from Complete()'s
// per-event ToolCall chunk emission to one accumulated tool_calls list
// delivered through onToolCalls immediately before onDone.
type AnthropicProvider struct {
	client       anthropic.Client
	BaseProvider
	defaultModel string
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// NewAnthropicProvider validates config and builds a client.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		BaseProvider: NewBaseProvider(config.MaxRetries, config.RetryDelay),
		defaultModel: config.DefaultModel,
	}, nil
}

// Name implements agent.LLMProvider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// ChatWithToolsStream implements agent.LLMProvider.
func (p *AnthropicProvider) ChatWithToolsStream(
	ctx context.Context,
	req agent.CompletionRequest,
	onChunk func(agent.StreamDelta),
	onToolCalls func([]agent.ToolCall),
	onDone func(agent.ChatWithToolsResult),
	onError func(error),
) (func(), error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", agent.ErrLLM, err)
	}
	tools, err := p.convertTools(req.Tools)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", agent.ErrLLM, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.getModel(req.Model)),
		MaxTokens: int64(p.getMaxTokens(req.MaxTokens)),
		Messages:  messages,
		Tools:     tools,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	go func() {
		defer cancel()
		stream := p.client.Messages.NewStreaming(streamCtx, params)
		result, streamErr := p.consumeStream(stream, onChunk)
		if streamErr != nil {
			if streamCtx.Err() != nil && len(result.Content) >= 10 {
				// Cancellation after substantial content is treated as
				// completion (spec.md §4.7 / §7).
				onToolCalls(result.ToolCalls)
				onDone(result)
				return
			}
			onError(p.wrapError(streamErr))
			return
		}
		onToolCalls(result.ToolCalls)
		onDone(result)
	}()

	return cancel, nil
}

func (p *AnthropicProvider) consumeStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], onChunk func(agent.StreamDelta)) (agent.ChatWithToolsResult, error) {
	var (
		content      strings.Builder
		reasoning    strings.Builder
		toolCalls    []agent.ToolCall
		currentCall  *agent.ToolCall
		currentInput strings.Builder
		inputTokens  int
		outputTokens int
	)

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				currentCall = &agent.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				currentInput.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					content.WriteString(delta.Text)
					onChunk(agent.StreamDelta{Text: delta.Text})
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					reasoning.WriteString(delta.Thinking)
					onChunk(agent.StreamDelta{Reasoning: delta.Thinking})
				}
			case "input_json_delta":
				currentInput.WriteString(delta.PartialJSON)
			}

		case "content_block_stop":
			if currentCall != nil {
				currentCall.Arguments = json.RawMessage(currentInput.String())
				toolCalls = append(toolCalls, *currentCall)
				currentCall = nil
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
		}
	}

	result := agent.ChatWithToolsResult{
		Content:      content.String(),
		Reasoning:    reasoning.String(),
		ToolCalls:    toolCalls,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}

	if err := stream.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (p *AnthropicProvider) convertMessages(messages []agent.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		if msg.Role == agent.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion

		switch msg.Role {
		case agent.RoleTool:
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		default:
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				var input map[string]any
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &input); err != nil {
						return nil, fmt.Errorf("invalid tool call arguments: %w", err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
		}

		if msg.Role == agent.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, nil
}

func (p *AnthropicProvider) convertTools(tools []agent.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(t.Schema) > 0 {
			if err := json.Unmarshal(t.Schema, &schema); err != nil {
				return nil, fmt.Errorf("invalid schema for tool %q: %w", t.Name, err)
			}
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid schema for tool %q: missing tool definition", t.Name)
		}
		toolParam.OfTool.Description = anthropic.String(t.Description)
		out = append(out, toolParam)
	}
	return out, nil
}

func (p *AnthropicProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func (p *AnthropicProvider) getMaxTokens(maxTokens int) int {
	if maxTokens <= 0 {
		return 4096
	}
	return maxTokens
}

func (p *AnthropicProvider) wrapError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: anthropic: %v", agent.ErrLLM, err)
}
