package openrouter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/application/service"
	"smart-browser-agent/internal/domain/entity"
	"smart-browser-agent/internal/infrastructure/logger"
)

func TestConvertResponseMessage_WithContent(t *testing.T) {
	result := convertResponseMessage(openai.ChatCompletionMessage{
		Role:    "assistant",
		Content: "Hello, world!",
	})

	assert.Equal(t, "Hello, world!", result.Content)
	assert.Empty(t, result.Invocations)
}

func TestConvertResponseMessage_WithToolCalls(t *testing.T) {
	result := convertResponseMessage(openai.ChatCompletionMessage{
		Role: "assistant",
		ToolCalls: []openai.ToolCall{
			{
				ID:   "call_123",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      "navigate",
					Arguments: `{"url":"https://example.com"}`,
				},
			},
		},
	})

	require.Len(t, result.Invocations, 1)
	assert.Equal(t, "call_123", result.Invocations[0].ID)
	assert.Equal(t, entity.ActionNavigate, result.Invocations[0].Name)
	assert.Equal(t, `{"url":"https://example.com"}`, result.Invocations[0].Arguments)
}

func TestConvertMessages(t *testing.T) {
	turns := []entity.Turn{
		entity.SystemTurn("sys"),
		entity.UserTurn("Hello"),
		entity.AssistantTurn("", entity.ActionInvocation{ID: "c1", Name: entity.ActionClick, Arguments: `{"description":"go"}`}),
		entity.Observation{InvocationID: "c1", Action: entity.ActionClick, Err: "Could not find clickable element: go"}.Turn(),
	}

	result := convertMessages(turns)

	require.Len(t, result, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, result[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, result[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, result[2].Role)
	require.Len(t, result[2].ToolCalls, 1)
	assert.Equal(t, "click", result[2].ToolCalls[0].Function.Name)
	assert.Equal(t, openai.ChatMessageRoleTool, result[3].Role)
	assert.Equal(t, "c1", result[3].ToolCallID)
	assert.Equal(t, "Error: Could not find clickable element: go", result[3].Content)
}

func TestConvertTools(t *testing.T) {
	tools := convertTools(service.DefaultActionRegistry().Definitions())
	require.Len(t, tools, 8)
	assert.Equal(t, "navigate", tools[0].Function.Name)
	params := tools[0].Function.Parameters.(map[string]interface{})
	assert.Equal(t, []string{"url"}, params["required"])
}

func TestChat_AgainstFakeServer(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"finish_reason":"tool_calls",
			"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function",
			"function":{"name":"screenshot","arguments":"{}"}}]}}]}`))
	}))
	defer srv.Close()

	a := NewOpenRouterAdapter(Config{APIKey: "key", Model: "test-model", BaseURL: srv.URL, Logger: logger.NewNop(), LogBodies: true})
	resp, err := a.Chat(t.Context(), output.ChatRequest{
		Messages: []entity.Turn{entity.UserTurn("take a screenshot")},
		Tools:    service.DefaultActionRegistry().Definitions(),
	})
	require.NoError(t, err)

	assert.Equal(t, "test-model", got.Model)
	assert.Len(t, got.Tools, 8)
	require.Len(t, resp.Invocations, 1)
	assert.Equal(t, entity.ActionScreenshot, resp.Invocations[0].Name)
}

func TestChatStream_AssemblesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"index":0,"delta":{"content":"Let me "}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"look."}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_9","type":"function","function":{"name":"navigate","arguments":"{\"url\":"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"https://a.test\"}"}}]}}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	a := NewOpenRouterAdapter(Config{APIKey: "key", Model: "m", BaseURL: srv.URL, Stream: true})

	var streamed string
	resp, err := a.ChatStream(t.Context(), output.ChatRequest{Messages: []entity.Turn{entity.UserTurn("go")}},
		func(s string) { streamed += s })
	require.NoError(t, err)

	assert.Equal(t, "Let me look.", resp.Content)
	assert.Equal(t, "Let me look.", streamed)
	require.Len(t, resp.Invocations, 1)
	assert.Equal(t, "call_9", resp.Invocations[0].ID)
	assert.Equal(t, `{"url":"https://a.test"}`, resp.Invocations[0].Arguments)
}
