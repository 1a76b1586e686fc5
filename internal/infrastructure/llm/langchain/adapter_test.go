package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/application/service"
	"smart-browser-agent/internal/domain/entity"
	"smart-browser-agent/internal/infrastructure/logger"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestChat_MapsTranscriptAndToolCalls(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content: "",
		ToolCalls: []llms.ToolCall{{
			ID:           "call_7",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "fill", Arguments: `{"description":"search box","text":"go"}`},
		}},
	}}}}
	a := New(model, logger.NewNop())

	resp, err := a.Chat(context.Background(), output.ChatRequest{
		Messages: []entity.Turn{
			entity.SystemTurn("sys"),
			entity.UserTurn("search for go"),
			entity.AssistantTurn("navigating", entity.ActionInvocation{ID: "c1", Name: entity.ActionNavigate, Arguments: `{"url":"https://x.test"}`}),
			entity.Observation{InvocationID: "c1", Action: entity.ActionNavigate, Content: "Successfully navigated"}.Turn(),
		},
		Tools:       service.DefaultActionRegistry().Definitions(),
		Temperature: 0.2,
	})
	require.NoError(t, err)

	require.Len(t, resp.Invocations, 1)
	assert.Equal(t, entity.ActionInvocation{ID: "call_7", Name: entity.ActionFill, Arguments: `{"description":"search box","text":"go"}`}, resp.Invocations[0])

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	require.Len(t, model.messages[2].Parts, 2)
	call, ok := model.messages[2].Parts[1].(llms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "navigate", call.FunctionCall.Name)

	assert.Equal(t, llms.ChatMessageTypeTool, model.messages[3].Role)
	toolResp, ok := model.messages[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "c1", toolResp.ToolCallID)

	assert.Len(t, model.opts.Tools, 8)
	assert.InDelta(t, 0.2, model.opts.Temperature, 1e-6)
}

func TestChat_Errors(t *testing.T) {
	a := New(&fakeModel{err: errors.New("rate limited")}, nil)
	_, err := a.Chat(context.Background(), output.ChatRequest{Messages: []entity.Turn{entity.UserTurn("x")}})
	assert.ErrorContains(t, err, "rate limited")

	a = New(&fakeModel{resp: &llms.ContentResponse{}}, nil)
	_, err = a.Chat(context.Background(), output.ChatRequest{Messages: []entity.Turn{entity.UserTurn("x")}})
	assert.ErrorContains(t, err, "no choices")
}
