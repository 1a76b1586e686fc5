// Package session owns the lifecycle of browser sessions: lazy creation on
// first use, reuse while open, and teardown on close or shutdown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"smart-browser-agent/internal/application/port/output"
)

var ErrClosed = errors.New("session manager closed")

var _ output.SessionManager = (*Manager)(nil)

type Manager struct {
	engine  output.BrowserEngine
	opts    output.LaunchOptions
	logger  output.LoggerPort
	metrics output.MetricsPort

	group singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*keyLock
	closed   bool
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(engine output.BrowserEngine, opts output.LaunchOptions, logger output.LoggerPort, metrics output.MetricsPort) *Manager {
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	return &Manager{
		engine:   engine,
		opts:     opts,
		logger:   logger.WithField("component", "session_manager"),
		metrics:  metrics,
		sessions: make(map[string]*Session),
		locks:    make(map[string]*keyLock),
	}
}

// Acquire returns the open session for id, launching one on first use.
// Concurrent first calls for the same id share a single launch.
func (m *Manager) Acquire(ctx context.Context, id string) (output.Session, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}

	v, err, _ := m.group.Do(id, func() (interface{}, error) {
		if s, err := m.lookup(id); err != nil {
			return nil, err
		} else if s != nil {
			return s, nil
		}

		m.logger.Info("Launching browser session", "session_id", id, "engine", m.engine.Name())
		browser, err := m.engine.Launch(ctx, m.opts)
		if err != nil {
			return nil, fmt.Errorf("launch %s browser for session %q: %w", m.engine.Name(), id, err)
		}

		s := newSession(id, browser)
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			_ = browser.Close()
			return nil, ErrClosed
		}
		m.sessions[id] = s
		open := len(m.sessions)
		m.mu.Unlock()

		m.metrics.SessionsOpen(open)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.sessions[id], nil
}

// Release closes and forgets the session. Unknown ids are a no-op.
func (m *Manager) Release(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	open := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	m.metrics.SessionsOpen(open)

	if err := s.browser.Close(); err != nil {
		return fmt.Errorf("close session %q: %w", id, err)
	}
	m.logger.Info("Browser session closed", "session_id", id)
	return nil
}

// ReleaseAll closes every open session. A failure is logged and the rest
// are still closed; all failures are returned together.
func (m *Manager) ReleaseAll(ctx context.Context) error {
	var errs error
	for _, id := range m.IDs() {
		if err := m.Release(ctx, id); err != nil {
			m.logger.Error("Failed to release session", "session_id", id, "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Shutdown releases everything and rejects further Acquire calls.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.ReleaseAll(ctx)
}

// Lock serializes use of one session id. The returned func is idempotent.
func (m *Manager) Lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &keyLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			m.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(m.locks, id)
			}
			m.mu.Unlock()
		})
	}
}

func (m *Manager) RecordAction(id, label string) {
	m.mu.Lock()
	s := m.sessions[id]
	m.mu.Unlock()
	if s != nil {
		s.record(label)
	}
}

func (m *Manager) Snapshot(id string) output.SessionSnapshot {
	m.mu.Lock()
	s := m.sessions[id]
	m.mu.Unlock()
	if s == nil {
		return output.SessionSnapshot{ID: id}
	}
	return s.snapshot()
}

// IDs lists open session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
