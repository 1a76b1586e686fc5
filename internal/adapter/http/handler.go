// Package http exposes the agent loop over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"

	"smart-browser-agent/internal/application/port/input"
	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/domain/entity"
	"smart-browser-agent/internal/usecase/executor"
)

type InvocationRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

type InvocationResponse struct {
	Result         string `json:"result"`
	SessionID      string `json:"session_id"`
	Status         string `json:"status"`
	Turns          int    `json:"turns"`
	BudgetExceeded bool   `json:"budget_exceeded"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	tasks    input.TaskExecutor
	sessions output.SessionManager
	metrics  http.Handler
	logger   output.LoggerPort
}

// NewHandler wires the routes; metrics may be nil.
func NewHandler(tasks input.TaskExecutor, sessions output.SessionManager, metrics http.Handler, logger output.LoggerPort) *Handler {
	return &Handler{tasks: tasks, sessions: sessions, metrics: metrics, logger: logger}
}

func (h *Handler) Routes(reqLogger *httplog.Logger) http.Handler {
	r := chi.NewRouter()
	if reqLogger != nil {
		r.Use(httplog.RequestLogger(reqLogger, []string{"/ping", "/metrics"}))
	}

	r.Get("/ping", h.handlePing)
	r.Post("/invocations", h.handleInvoke)
	r.Delete("/sessions/{sessionID}", h.handleReleaseSession)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

func (h *Handler) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req InvocationRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "prompt is required"})
		return
	}

	task := entity.NewTask(req.Prompt, req.SessionID)
	httplog.LogEntrySetField(r.Context(), "session_id", slog.StringValue(task.SessionID))

	result, err := h.tasks.Execute(r.Context(), task)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("Invocation failed", "session", task.SessionID, "error", err, "reasoning", errors.Is(err, executor.ErrReasoning))
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, InvocationResponse{
		Result:         result.FinalAnswer,
		SessionID:      result.SessionID,
		Status:         string(result.Status),
		Turns:          result.Iterations,
		BudgetExceeded: result.BudgetExceeded(),
	})
}

func (h *Handler) handleReleaseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	// Waits for a running task on the same session to finish.
	unlock := h.sessions.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := h.sessions.Release(ctx, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
