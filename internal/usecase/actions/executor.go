// Package actions executes single action invocations against a session and
// turns every outcome, including engine failures and panics, into an
// observation the model can read.
package actions

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/application/service"
	"smart-browser-agent/internal/domain/entity"
)

const DefaultMaxObservationLen = 20000

var _ output.ActionExecutor = (*Executor)(nil)

type Executor struct {
	registry          *service.ActionRegistry
	handlers          map[entity.ActionName]output.ActionHandler
	sessions          output.SessionManager
	logger            output.LoggerPort
	metrics           output.MetricsPort
	maxObservationLen int
}

type Option func(*Executor)

func WithMetrics(m output.MetricsPort) Option {
	return func(e *Executor) { e.metrics = m }
}

func WithMaxObservationLen(n int) Option {
	return func(e *Executor) { e.maxObservationLen = n }
}

// NewExecutor binds handlers to registered actions. Every registered action
// except close needs exactly one handler.
func NewExecutor(
	registry *service.ActionRegistry,
	sessions output.SessionManager,
	handlers []output.ActionHandler,
	logger output.LoggerPort,
	opts ...Option,
) (*Executor, error) {
	e := &Executor{
		registry:          registry,
		handlers:          make(map[entity.ActionName]output.ActionHandler, len(handlers)),
		sessions:          sessions,
		logger:            logger.WithField("component", "action_executor"),
		metrics:           output.NopMetrics{},
		maxObservationLen: DefaultMaxObservationLen,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, h := range handlers {
		if _, ok := registry.Get(h.Name()); !ok {
			return nil, fmt.Errorf("handler for %w '%s'", service.ErrUnknownAction, h.Name())
		}
		if _, dup := e.handlers[h.Name()]; dup {
			return nil, fmt.Errorf("%w: handler %s", service.ErrDuplicateAction, h.Name())
		}
		e.handlers[h.Name()] = h
	}
	for _, name := range registry.Names() {
		if _, ok := e.handlers[name]; !ok && name != entity.ActionClose {
			return nil, fmt.Errorf("no handler for action %s", name)
		}
	}
	return e, nil
}

func (e *Executor) Execute(ctx context.Context, inv entity.ActionInvocation, sessionID string) (obs entity.Observation) {
	start := time.Now()
	obs = entity.Observation{InvocationID: inv.ID, Action: inv.Name}
	log := e.logger.WithFields(map[string]any{
		"action":        string(inv.Name),
		"invocation_id": inv.ID,
		"session_id":    sessionID,
	})

	defer func() {
		if r := recover(); r != nil {
			log.Error("Action panicked", "panic", r)
			obs.Content = ""
			obs.Err = fmt.Sprintf("internal error while running %s: %v", inv.Name, r)
		}
		elapsed := time.Since(start)
		e.metrics.ActionExecuted(inv.Name, obs.Failed(), elapsed)
		if obs.Failed() {
			log.Warn("Action failed", "error", obs.Err, "duration_ms", elapsed.Milliseconds())
		} else {
			log.Info("Action executed", "duration_ms", elapsed.Milliseconds(), "result_len", len(obs.Content))
		}
	}()

	args, err := e.registry.Validate(inv)
	if err != nil {
		obs.Err = err.Error()
		return obs
	}
	log.Debug("Executing action", "args", inv.Arguments)

	content, err := e.run(ctx, inv.Name, args, sessionID)
	if err != nil {
		obs.Err = err.Error()
		return obs
	}

	e.sessions.RecordAction(sessionID, inv.Label(args))
	obs.Content = e.truncate(content)
	return obs
}

func (e *Executor) run(ctx context.Context, name entity.ActionName, args entity.Arguments, sessionID string) (string, error) {
	if name == entity.ActionClose {
		if err := e.sessions.Release(ctx, sessionID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Browser session %s closed", sessionID), nil
	}

	h := e.handlers[name]
	session, err := e.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("browser session unavailable: %w", err)
	}
	return h.Execute(ctx, session, args)
}

func (e *Executor) truncate(s string) string {
	if e.maxObservationLen <= 0 || len(s) <= e.maxObservationLen {
		return s
	}
	// Cut at a rune boundary at or below the byte limit.
	cut := e.maxObservationLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
