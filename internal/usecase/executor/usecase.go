package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"smart-browser-agent/internal/application/port/input"
	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/application/service"
	"smart-browser-agent/internal/domain/entity"
)

var _ input.TaskExecutor = (*UseCase)(nil)

var ErrReasoning = errors.New("reasoning capability failed")

type State string

const (
	StateThinking State = "THINKING"
	StateActing   State = "ACTING"
	StateDone     State = "DONE"
)

const (
	DefaultMaxTurns    = 25
	DefaultMaxDuration = 10 * time.Minute
)

type Config struct {
	MaxTurns    int
	MaxDuration time.Duration
	Temperature float32
}

// PromptFunc renders the system instructions for the session's current
// context. It is called before every reasoning call.
type PromptFunc func(snapshot output.SessionSnapshot) (string, error)

type UseCase struct {
	llm      output.LLMPort
	actions  output.ActionExecutor
	sessions output.SessionManager
	registry *service.ActionRegistry
	prompt   PromptFunc
	logger   output.LoggerPort
	progress output.ProgressPort
	metrics  output.MetricsPort
	cfg      Config
	now      func() time.Time
}

type Option func(*UseCase)

func WithProgress(p output.ProgressPort) Option {
	return func(uc *UseCase) { uc.progress = p }
}

func WithMetrics(m output.MetricsPort) Option {
	return func(uc *UseCase) { uc.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) { uc.now = now }
}

func New(
	llm output.LLMPort,
	actions output.ActionExecutor,
	sessions output.SessionManager,
	registry *service.ActionRegistry,
	prompt PromptFunc,
	logger output.LoggerPort,
	cfg Config,
	opts ...Option,
) *UseCase {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	uc := &UseCase{
		llm:      llm,
		actions:  actions,
		sessions: sessions,
		registry: registry,
		prompt:   prompt,
		logger:   logger.WithField("component", "agent_loop"),
		progress: output.NopProgress{},
		metrics:  output.NopMetrics{},
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// run holds the mutable state of one task execution.
type run struct {
	task       entity.Task
	transcript *entity.Transcript
	state      State
	pending    []entity.ActionInvocation
	turns      int
	started    time.Time
	status     entity.TaskStatus
}

// Execute drives THINKING -> ACTING -> THINKING ... -> DONE for one task.
// Per-action failures stay inside the transcript; only reasoning, setup and
// cancellation errors are returned.
func (uc *UseCase) Execute(ctx context.Context, task entity.Task) (*entity.TaskResult, error) {
	task = entity.NewTask(task.Instruction, task.SessionID)
	log := uc.logger.WithField("session_id", task.SessionID)

	unlock := uc.sessions.Lock(task.SessionID)
	defer unlock()

	if _, err := uc.sessions.Acquire(ctx, task.SessionID); err != nil {
		log.Error("Browser session setup failed", "error", err)
		uc.metrics.TaskFinished(entity.TaskStatusFailed)
		return nil, fmt.Errorf("start browser session: %w", err)
	}

	system, err := uc.systemPrompt(task.SessionID)
	if err != nil {
		uc.metrics.TaskFinished(entity.TaskStatusFailed)
		return nil, err
	}

	r := &run{
		task:       task,
		transcript: entity.NewTranscript(entity.SystemTurn(system), entity.UserTurn(task.Instruction)),
		state:      StateThinking,
		started:    uc.now(),
	}
	log.Info("Task started", "instruction", task.Instruction)

	for r.state != StateDone {
		switch r.state {
		case StateThinking:
			err = uc.think(ctx, r, log)
		case StateActing:
			uc.act(ctx, r)
		}
		if err != nil {
			uc.metrics.TaskFinished(entity.TaskStatusFailed)
			log.Error("Task aborted", "turns", r.turns, "error", err)
			return nil, err
		}
	}

	uc.metrics.TaskFinished(r.status)
	answer := r.transcript.FinalAnswer()
	uc.progress.ShowFinalAnswer(ctx, answer)
	log.Info("Task finished", "status", string(r.status), "turns", r.turns,
		"duration_ms", uc.now().Sub(r.started).Milliseconds())

	return &entity.TaskResult{
		SessionID:   task.SessionID,
		FinalAnswer: answer,
		Transcript:  r.transcript.Turns(),
		Iterations:  r.turns,
		Status:      r.status,
	}, nil
}

func (uc *UseCase) think(ctx context.Context, r *run, log output.LoggerPort) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if reason, exceeded := uc.budgetExceeded(r); exceeded {
		log.Warn("Budget exceeded", "reason", reason)
		r.transcript.Append(entity.AssistantTurn(
			fmt.Sprintf("Stopped: turn budget exceeded (%s) before a final answer was reached.", reason)))
		r.status = entity.TaskStatusBudgetExceeded
		r.state = StateDone
		return nil
	}

	uc.progress.ShowIteration(ctx, r.turns+1, uc.cfg.MaxTurns)
	log.Debug("Starting iteration", "iteration", r.turns+1)

	messages := r.transcript.Turns()
	system, err := uc.systemPrompt(r.task.SessionID)
	if err != nil {
		return err
	}
	messages[0] = entity.SystemTurn(system)

	resp, err := uc.llm.Chat(ctx, output.ChatRequest{
		Messages:    messages,
		Tools:       uc.registry.Definitions(),
		Temperature: uc.cfg.Temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrReasoning, err)
	}
	r.turns++
	uc.metrics.TurnCompleted()

	invocations := assignIDs(resp.Invocations)
	r.transcript.Append(entity.AssistantTurn(resp.Content, invocations...))
	if strings.TrimSpace(resp.Content) != "" && len(invocations) > 0 {
		uc.progress.ShowThinking(ctx, resp.Content)
	}

	if len(invocations) == 0 {
		r.status = entity.TaskStatusCompleted
		r.state = StateDone
		return nil
	}
	r.pending = invocations
	r.state = StateActing
	return nil
}

// act runs the pending invocations strictly in order, one at a time.
func (uc *UseCase) act(ctx context.Context, r *run) {
	for _, inv := range r.pending {
		uc.progress.ShowActionStart(ctx, string(inv.Name), inv.Arguments)
		obs := uc.actions.Execute(ctx, inv, r.task.SessionID)
		r.transcript.Append(obs.Turn())
		uc.progress.ShowActionResult(ctx, string(inv.Name), obs.Text(), obs.Failed())
	}
	r.pending = nil
	r.state = StateThinking
}

func (uc *UseCase) budgetExceeded(r *run) (string, bool) {
	if r.turns >= uc.cfg.MaxTurns {
		return fmt.Sprintf("%d reasoning turns", uc.cfg.MaxTurns), true
	}
	if uc.cfg.MaxDuration > 0 {
		if elapsed := uc.now().Sub(r.started); elapsed >= uc.cfg.MaxDuration {
			return fmt.Sprintf("%s wall-clock limit", uc.cfg.MaxDuration), true
		}
	}
	return "", false
}

func (uc *UseCase) systemPrompt(sessionID string) (string, error) {
	s, err := uc.prompt(uc.sessions.Snapshot(sessionID))
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return s, nil
}

// assignIDs gives every invocation a unique id, keeping the ones the model
// supplied unless they are blank or repeated.
func assignIDs(invocations []entity.ActionInvocation) []entity.ActionInvocation {
	if len(invocations) == 0 {
		return nil
	}
	out := make([]entity.ActionInvocation, len(invocations))
	seen := make(map[string]bool, len(invocations))
	for i, inv := range invocations {
		if inv.ID == "" || seen[inv.ID] {
			inv.ID = "call_" + uuid.NewString()
		}
		seen[inv.ID] = true
		out[i] = inv
	}
	return out
}
