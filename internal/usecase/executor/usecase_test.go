package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-browser-agent/internal/adapter/tool"
	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/application/service"
	"smart-browser-agent/internal/domain/entity"
	"smart-browser-agent/internal/infrastructure/browser/static"
	"smart-browser-agent/internal/infrastructure/logger"
	"smart-browser-agent/internal/usecase/actions"
	"smart-browser-agent/internal/usecase/resolver"
	"smart-browser-agent/internal/usecase/session"
)

// scriptedLLM replays canned responses and records every request.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []*output.ChatResponse
	requests  []output.ChatRequest
	err       error
	repeat    bool
}

func (l *scriptedLLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
	if l.err != nil {
		return nil, l.err
	}
	if len(l.responses) == 0 {
		return &output.ChatResponse{Content: "done"}, nil
	}
	resp := l.responses[0]
	if !l.repeat {
		l.responses = l.responses[1:]
	}
	return resp, nil
}

// echoExecutor answers every invocation with a fixed observation.
type echoExecutor struct {
	calls []entity.ActionInvocation
}

func (e *echoExecutor) Execute(ctx context.Context, inv entity.ActionInvocation, sessionID string) entity.Observation {
	e.calls = append(e.calls, inv)
	return entity.Observation{InvocationID: inv.ID, Action: inv.Name, Content: "ok " + string(inv.Name)}
}

func staticPrompt(snapshot output.SessionSnapshot) (string, error) {
	url := snapshot.LastURL
	if url == "" {
		url = "None"
	}
	return fmt.Sprintf("session=%s url=%s done=%s", snapshot.ID, url, strings.Join(snapshot.CompletedActions, ";")), nil
}

func newSessions(engine output.BrowserEngine) *session.Manager {
	return session.NewManager(engine, output.LaunchOptions{}, logger.NewNop(), nil)
}

func newUseCase(llm output.LLMPort, exec output.ActionExecutor, sessions *session.Manager, cfg Config, opts ...Option) *UseCase {
	return New(llm, exec, sessions, service.DefaultActionRegistry(), staticPrompt, logger.NewNop(), cfg, opts...)
}

func inv(id string, name entity.ActionName, args string) entity.ActionInvocation {
	return entity.ActionInvocation{ID: id, Name: name, Arguments: args}
}

func roles(turns []entity.Turn) []entity.MessageRole {
	out := make([]entity.MessageRole, len(turns))
	for i, t := range turns {
		out[i] = t.Role
	}
	return out
}

func TestExecute_TerminatesAfterOneAssistantTurn(t *testing.T) {
	llm := &scriptedLLM{responses: []*output.ChatResponse{{Content: "Nothing to do."}}}
	exec := &echoExecutor{}
	uc := newUseCase(llm, exec, newSessions(static.NewEngine()), Config{})

	res, err := uc.Execute(context.Background(), entity.Task{Instruction: "say hi"})
	require.NoError(t, err)

	assert.Equal(t, "Nothing to do.", res.FinalAnswer)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, entity.TaskStatusCompleted, res.Status)
	assert.Equal(t, entity.DefaultSessionID, res.SessionID)
	assert.Equal(t, []entity.MessageRole{entity.RoleSystem, entity.RoleUser, entity.RoleAssistant}, roles(res.Transcript))
	assert.Empty(t, exec.calls)
	assert.Len(t, llm.requests, 1)
	assert.Len(t, llm.requests[0].Tools, 8)
}

func TestExecute_TranscriptWellFormed(t *testing.T) {
	llm := &scriptedLLM{responses: []*output.ChatResponse{
		{Content: "first", Invocations: []entity.ActionInvocation{
			inv("a", entity.ActionNavigate, `{"url":"https://x.test"}`),
			inv("b", entity.ActionListElements, `{}`),
			inv("c", entity.ActionScreenshot, `{}`),
		}},
		{Invocations: []entity.ActionInvocation{inv("d", entity.ActionClose, `{}`)}},
		{Content: "all done"},
	}}
	exec := &echoExecutor{}
	uc := newUseCase(llm, exec, newSessions(static.NewEngine()), Config{})

	res, err := uc.Execute(context.Background(), entity.NewTask("do things", "s1"))
	require.NoError(t, err)

	transcript := entity.NewTranscript(res.Transcript...)
	require.NoError(t, transcript.Validate())
	assert.Equal(t, []entity.MessageRole{
		entity.RoleSystem, entity.RoleUser,
		entity.RoleAssistant, entity.RoleObservation, entity.RoleObservation, entity.RoleObservation,
		entity.RoleAssistant, entity.RoleObservation,
		entity.RoleAssistant,
	}, roles(res.Transcript))

	var ids []string
	for _, c := range exec.calls {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, "b", res.Transcript[4].InvocationID)
	assert.Equal(t, 3, res.Iterations)
}

func TestExecute_AssignsMissingAndDuplicateIDs(t *testing.T) {
	llm := &scriptedLLM{responses: []*output.ChatResponse{
		{Invocations: []entity.ActionInvocation{
			inv("", entity.ActionListElements, `{}`),
			inv("dup", entity.ActionListElements, `{}`),
			inv("dup", entity.ActionListElements, `{}`),
		}},
	}}
	exec := &echoExecutor{}
	uc := newUseCase(llm, exec, newSessions(static.NewEngine()), Config{})

	res, err := uc.Execute(context.Background(), entity.NewTask("x", ""))
	require.NoError(t, err)
	require.Len(t, exec.calls, 3)

	assert.True(t, strings.HasPrefix(exec.calls[0].ID, "call_"))
	assert.Equal(t, "dup", exec.calls[1].ID)
	assert.NotEqual(t, "dup", exec.calls[2].ID)
	assert.NoError(t, entity.NewTranscript(res.Transcript...).Validate())
}

func TestExecute_TurnBudgetExceeded(t *testing.T) {
	llm := &scriptedLLM{
		repeat: true,
		responses: []*output.ChatResponse{
			{Invocations: []entity.ActionInvocation{inv("", entity.ActionListElements, `{}`)}},
		},
	}
	exec := &echoExecutor{}
	uc := newUseCase(llm, exec, newSessions(static.NewEngine()), Config{MaxTurns: 3})

	res, err := uc.Execute(context.Background(), entity.NewTask("loop forever", "s1"))
	require.NoError(t, err)

	assert.True(t, res.BudgetExceeded())
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, llm.requests, 3)
	assert.Len(t, exec.calls, 3)
	assert.True(t, strings.HasPrefix(res.FinalAnswer, "Stopped: turn budget exceeded"))
	assert.NoError(t, entity.NewTranscript(res.Transcript...).Validate())
}

func TestExecute_DurationBudgetExceeded(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	llm := &scriptedLLM{
		repeat: true,
		responses: []*output.ChatResponse{
			{Invocations: []entity.ActionInvocation{inv("", entity.ActionListElements, `{}`)}},
		},
	}
	uc := newUseCase(llm, &echoExecutor{}, newSessions(static.NewEngine()),
		Config{MaxTurns: 100, MaxDuration: time.Minute},
		WithClock(func() time.Time {
			clock = clock.Add(25 * time.Second)
			return clock
		}))

	res, err := uc.Execute(context.Background(), entity.NewTask("slow", "s1"))
	require.NoError(t, err)
	assert.True(t, res.BudgetExceeded())
	assert.Contains(t, res.FinalAnswer, "wall-clock")
	assert.Less(t, res.Iterations, 100)
}

func TestExecute_ReasoningErrorIsFatal(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("connection refused")}
	uc := newUseCase(llm, &echoExecutor{}, newSessions(static.NewEngine()), Config{})

	_, err := uc.Execute(context.Background(), entity.NewTask("x", "s1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReasoning)
	assert.Contains(t, err.Error(), "connection refused")
}

type brokenEngine struct{}

func (brokenEngine) Name() string { return "broken" }
func (brokenEngine) Launch(context.Context, output.LaunchOptions) (output.BrowserContext, error) {
	return nil, errors.New("chrome not found")
}

func TestExecute_SetupFailureIsFatal(t *testing.T) {
	llm := &scriptedLLM{}
	uc := newUseCase(llm, &echoExecutor{}, newSessions(brokenEngine{}), Config{})

	_, err := uc.Execute(context.Background(), entity.NewTask("x", "s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Empty(t, llm.requests)
}

func TestExecute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &scriptedLLM{
		repeat: true,
		responses: []*output.ChatResponse{
			{Invocations: []entity.ActionInvocation{inv("", entity.ActionListElements, `{}`)}},
		},
	}
	exec := &cancellingExecutor{cancel: cancel}
	uc := newUseCase(llm, exec, newSessions(static.NewEngine()), Config{})

	_, err := uc.Execute(ctx, entity.NewTask("x", "s1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, llm.requests, 1)
}

type cancellingExecutor struct {
	cancel context.CancelFunc
}

func (e *cancellingExecutor) Execute(ctx context.Context, inv entity.ActionInvocation, sessionID string) entity.Observation {
	e.cancel()
	return entity.Observation{InvocationID: inv.ID, Action: inv.Name, Err: "interrupted"}
}

func TestExecute_NavigateAndScreenshotScenario(t *testing.T) {
	const url = "https://example.com"
	engine := static.NewEngine(static.WithPage(url,
		`<html><head><title>Example Domain</title></head><body><h1>Example Domain</h1></body></html>`))
	sessions := newSessions(engine)
	t.Cleanup(func() { _ = sessions.ReleaseAll(context.Background()) })

	log := logger.NewNop()
	cfg := tool.DefaultConfig()
	cfg.SettleDelay = 0
	cfg.ScreenshotDir = t.TempDir()
	exec, err := actions.NewExecutor(service.DefaultActionRegistry(), sessions,
		tool.NewHandlers(cfg, resolver.New(log), log), log)
	require.NoError(t, err)

	llm := &answeringLLM{}
	uc := newUseCase(llm, exec, sessions, Config{})

	res, err := uc.Execute(context.Background(),
		entity.NewTask("navigate to https://example.com and take a screenshot", "demo"))
	require.NoError(t, err)

	turns := res.Transcript
	require.Len(t, turns, 6)
	assert.Equal(t, []entity.ActionName{entity.ActionNavigate, entity.ActionScreenshot},
		[]entity.ActionName{turns[2].Invocations[0].Name, turns[2].Invocations[1].Name})
	assert.Equal(t, "Successfully navigated to https://example.com. Page title: Example Domain", turns[3].Content)
	assert.False(t, turns[3].IsError)
	assert.True(t, strings.HasPrefix(turns[4].Content, "Screenshot saved to "))
	assert.Contains(t, res.FinalAnswer, "Example Domain")
	assert.Contains(t, res.FinalAnswer, "Screenshot saved to ")

	// The second reasoning call sees the updated session context.
	require.Len(t, llm.requests, 2)
	system := llm.requests[1].Messages[0].Content
	assert.Contains(t, system, "url=https://example.com")
	assert.Contains(t, system, "navigate https://example.com;screenshot")
	assert.Equal(t, "session=demo url=None done=", turns[0].Content)
}

// answeringLLM plans navigate+screenshot, then summarizes the observations.
type answeringLLM struct {
	requests []output.ChatRequest
}

func (l *answeringLLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	l.requests = append(l.requests, req)
	if len(l.requests) == 1 {
		return &output.ChatResponse{Invocations: []entity.ActionInvocation{
			inv("nav", entity.ActionNavigate, `{"url":"https://example.com"}`),
			inv("shot", entity.ActionScreenshot, `{"full_page":false}`),
		}}, nil
	}
	var parts []string
	for _, m := range req.Messages {
		if m.Role == entity.RoleObservation {
			parts = append(parts, m.Content)
		}
	}
	return &output.ChatResponse{Content: "Done. " + strings.Join(parts, " | ")}, nil
}
