// Package langchain adapts any langchaingo llms.Model to the LLM port.
package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/domain/entity"
)

var _ output.LLMPort = (*Adapter)(nil)

type Adapter struct {
	model  llms.Model
	logger output.LoggerPort
}

func New(model llms.Model, logger output.LoggerPort) *Adapter {
	return &Adapter{model: model, logger: logger}
}

// NewOpenAI builds the adapter over langchaingo's OpenAI client.
func NewOpenAI(apiKey, model, baseURL string, logger output.LoggerPort) (*Adapter, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create langchaingo openai client: %w", err)
	}
	return New(llm, logger), nil
}

func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	messages := convertMessages(req.Messages)

	opts := []llms.CallOption{llms.WithTemperature(float64(req.Temperature))}
	if len(req.Tools) > 0 {
		opts = append(opts, llms.WithTools(convertTools(req.Tools)))
	}

	resp, err := a.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate content failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	if a.logger != nil {
		a.logger.Debug("Generation finished", "stopReason", choice.StopReason, "toolCalls", len(choice.ToolCalls))
	}

	out := &output.ChatResponse{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		out.Invocations = append(out.Invocations, entity.ActionInvocation{
			ID:        tc.ID,
			Name:      entity.ActionName(tc.FunctionCall.Name),
			Arguments: tc.FunctionCall.Arguments,
		})
	}
	return out, nil
}

func convertMessages(turns []entity.Turn) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case entity.RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, turn.Content))
		case entity.RoleUser:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, turn.Content))
		case entity.RoleAssistant:
			msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if turn.Content != "" {
				msg.Parts = append(msg.Parts, llms.TextContent{Text: turn.Content})
			}
			for _, inv := range turn.Invocations {
				msg.Parts = append(msg.Parts, llms.ToolCall{
					ID:   inv.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      string(inv.Name),
						Arguments: inv.Arguments,
					},
				})
			}
			out = append(out, msg)
		case entity.RoleObservation:
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: turn.InvocationID,
					Name:       string(turn.Action),
					Content:    turn.Content,
				}},
			})
		}
	}
	return out
}

func convertTools(specs []entity.ActionSpec) []llms.Tool {
	out := make([]llms.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        string(s.Name),
				Description: s.Description,
				Parameters:  s.Schema(),
			},
		})
	}
	return out
}
