package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/domain/entity"
	"smart-browser-agent/internal/infrastructure/browser/static"
	"smart-browser-agent/internal/infrastructure/logger"
	"smart-browser-agent/internal/infrastructure/metrics"
	"smart-browser-agent/internal/usecase/executor"
	"smart-browser-agent/internal/usecase/session"
)

type fakeTasks struct {
	result *entity.TaskResult
	err    error
	got    []entity.Task
}

func (f *fakeTasks) Execute(_ context.Context, task entity.Task) (*entity.TaskResult, error) {
	f.got = append(f.got, task)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.SessionID = task.SessionID
	return &res, nil
}

func newTestHandler(tasks *fakeTasks) (http.Handler, *session.Manager) {
	sessions := session.NewManager(static.NewEngine(), output.LaunchOptions{}, logger.NewNop(), nil)
	h := NewHandler(tasks, sessions, metrics.NewCollector().Handler(), logger.NewNop())
	return h.Routes(nil), sessions
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	h, _ := newTestHandler(&fakeTasks{})
	rec := do(t, h, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestInvocations(t *testing.T) {
	tests := []struct {
		name       string
		tasks      *fakeTasks
		body       string
		wantStatus int
		check      func(t *testing.T, body string, tasks *fakeTasks)
	}{
		{
			name: "completed",
			tasks: &fakeTasks{result: &entity.TaskResult{
				FinalAnswer: "The title is Example Domain",
				Iterations:  2,
				Status:      entity.TaskStatusCompleted,
			}},
			body:       `{"prompt":"open example.com","session_id":"s1"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body string, tasks *fakeTasks) {
				var resp InvocationResponse
				require.NoError(t, json.Unmarshal([]byte(body), &resp))
				assert.Equal(t, "The title is Example Domain", resp.Result)
				assert.Equal(t, "s1", resp.SessionID)
				assert.Equal(t, 2, resp.Turns)
				assert.False(t, resp.BudgetExceeded)
				require.Len(t, tasks.got, 1)
				assert.Equal(t, "open example.com", tasks.got[0].Instruction)
			},
		},
		{
			name: "default session and budget",
			tasks: &fakeTasks{result: &entity.TaskResult{
				FinalAnswer: "Stopped: turn budget exceeded (25 reasoning turns) before a final answer was reached.",
				Iterations:  25,
				Status:      entity.TaskStatusBudgetExceeded,
			}},
			body:       `{"prompt":"loop"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body string, tasks *fakeTasks) {
				var resp InvocationResponse
				require.NoError(t, json.Unmarshal([]byte(body), &resp))
				assert.True(t, resp.BudgetExceeded)
				assert.Equal(t, entity.DefaultSessionID, resp.SessionID)
			},
		},
		{
			name:       "reasoning failure",
			tasks:      &fakeTasks{err: fmt.Errorf("%w: %w", executor.ErrReasoning, errors.New("401 unauthorized"))},
			body:       `{"prompt":"anything"}`,
			wantStatus: http.StatusBadGateway,
			check: func(t *testing.T, body string, _ *fakeTasks) {
				assert.Contains(t, body, "401 unauthorized")
			},
		},
		{
			name:       "malformed body",
			tasks:      &fakeTasks{},
			body:       `{"prompt":`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, _ string, tasks *fakeTasks) {
				assert.Empty(t, tasks.got)
			},
		},
		{
			name:       "blank prompt",
			tasks:      &fakeTasks{},
			body:       `{"prompt":"   "}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body string, tasks *fakeTasks) {
				assert.Contains(t, body, "prompt is required")
				assert.Empty(t, tasks.got)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(tt.tasks)
			rec := do(t, h, http.MethodPost, "/invocations", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			tt.check(t, rec.Body.String(), tt.tasks)
		})
	}
}

func TestReleaseSession(t *testing.T) {
	h, sessions := newTestHandler(&fakeTasks{})
	_, err := sessions.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 1, sessions.Len())

	rec := do(t, h, http.MethodDelete, "/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, sessions.Len())

	rec = do(t, h, http.MethodDelete, "/sessions/unknown", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(&fakeTasks{})
	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agent_sessions_open")
}

func TestRoutesWithRequestLogger(t *testing.T) {
	sessions := session.NewManager(static.NewEngine(), output.LaunchOptions{}, logger.NewNop(), nil)
	h := NewHandler(&fakeTasks{}, sessions, nil, logger.NewNop()).Routes(NewRequestLogger("error", true))

	rec := do(t, h, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
