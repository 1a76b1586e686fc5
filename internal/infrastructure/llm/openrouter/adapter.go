package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/sashabaranov/go-openai"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/domain/entity"
)

var _ output.LLMPort = (*OpenRouterAdapter)(nil)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterAdapter talks to any OpenAI-compatible chat completion endpoint;
// OpenRouter is the default base URL.
type OpenRouterAdapter struct {
	client *openai.Client
	model  string
	stream bool
	logger output.LoggerPort
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Stream  bool
	Logger  output.LoggerPort
	// LogBodies logs request bodies at debug level.
	LogBodies bool
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: DefaultBaseURL,
	}
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
	bodies bool
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	fields := []any{"method", req.Method, "url", req.URL.String()}
	if t.bodies && req.Body != nil {
		bodyBytes, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var requestData map[string]interface{}
		if json.Unmarshal(bodyBytes, &requestData) == nil {
			fields = append(fields, "body", requestData)
		}
	}
	t.logger.Debug("HTTP Request", fields...)

	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		t.logger.Debug("HTTP Response", "status", resp.Status, "statusCode", resp.StatusCode)
	}
	return resp, err
}

func NewOpenRouterAdapter(cfg Config) *OpenRouterAdapter {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	if cfg.Logger != nil {
		config.HTTPClient = &http.Client{
			Transport: &loggingTransport{
				base:   http.DefaultTransport,
				logger: cfg.Logger,
				bodies: cfg.LogBodies,
			},
		}
	}

	return &OpenRouterAdapter{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		stream: cfg.Stream,
		logger: cfg.Logger,
	}
}

func (a *OpenRouterAdapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	if a.stream {
		return a.ChatStream(ctx, req, nil)
	}

	resp, err := a.client.CreateChatCompletion(ctx, a.request(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	return convertResponseMessage(resp.Choices[0].Message), nil
}

// ChatStream assembles a streamed completion; onChunk receives text deltas.
func (a *OpenRouterAdapter) ChatStream(ctx context.Context, req output.ChatRequest, onChunk func(string)) (*output.ChatResponse, error) {
	creq := a.request(req)
	creq.Stream = true

	stream, err := a.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("chat stream failed: %w", err)
	}
	defer stream.Close()

	var text bytes.Buffer
	toolCalls := make(map[int]*entity.ActionInvocation)
	chunks := 0

	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("stream recv error: %w", err)
		}
		chunks++
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			text.WriteString(delta.Content)
			if onChunk != nil {
				onChunk(delta.Content)
			}
		}

		for _, tc := range delta.ToolCalls {
			if tc.Index == nil {
				continue
			}
			idx := *tc.Index
			existing, ok := toolCalls[idx]
			if !ok {
				existing = &entity.ActionInvocation{}
				toolCalls[idx] = existing
			}
			existing.Arguments += tc.Function.Arguments
			if tc.Function.Name != "" {
				existing.Name = entity.ActionName(tc.Function.Name)
			}
			if tc.ID != "" {
				existing.ID = tc.ID
			}
		}
	}

	if a.logger != nil {
		a.logger.Debug("Stream completed", "chunks", chunks, "textLen", text.Len(), "toolCalls", len(toolCalls))
	}

	indices := make([]int, 0, len(toolCalls))
	for idx := range toolCalls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	resp := &output.ChatResponse{Content: text.String()}
	for _, idx := range indices {
		resp.Invocations = append(resp.Invocations, *toolCalls[idx])
	}
	return resp, nil
}

func (a *OpenRouterAdapter) request(req output.ChatRequest) openai.ChatCompletionRequest {
	creq := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
	}
	if len(req.Tools) > 0 {
		creq.Tools = convertTools(req.Tools)
		creq.ToolChoice = "auto"
	}
	return creq
}

func convertMessages(turns []entity.Turn) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		msg := openai.ChatCompletionMessage{Content: turn.Content}

		switch turn.Role {
		case entity.RoleSystem:
			msg.Role = openai.ChatMessageRoleSystem
		case entity.RoleUser:
			msg.Role = openai.ChatMessageRoleUser
		case entity.RoleAssistant:
			msg.Role = openai.ChatMessageRoleAssistant
			for _, inv := range turn.Invocations {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   inv.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      string(inv.Name),
						Arguments: inv.Arguments,
					},
				})
			}
		case entity.RoleObservation:
			msg.Role = openai.ChatMessageRoleTool
			msg.ToolCallID = turn.InvocationID
			msg.Name = string(turn.Action)
		}

		result = append(result, msg)
	}
	return result
}

func convertTools(specs []entity.ActionSpec) []openai.Tool {
	result := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(s.Name),
				Description: s.Description,
				Parameters:  s.Schema(),
			},
		})
	}
	return result
}

func convertResponseMessage(msg openai.ChatCompletionMessage) *output.ChatResponse {
	resp := &output.ChatResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		resp.Invocations = append(resp.Invocations, entity.ActionInvocation{
			ID:        tc.ID,
			Name:      entity.ActionName(tc.Function.Name),
			Arguments: tc.Function.Arguments,
		})
	}
	return resp
}
