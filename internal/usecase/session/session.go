package session

import (
	"sync"
	"time"

	"smart-browser-agent/internal/application/port/output"
)

var _ output.Session = (*Session)(nil)

// Session is one live browser context bound to a caller-chosen id. The
// browser context is owned by the Manager entry; handlers borrow the page
// only for the duration of a single action.
type Session struct {
	id        string
	browser   output.BrowserContext
	createdAt time.Time

	mu        sync.Mutex
	lastURL   string
	completed []string
}

func newSession(id string, browser output.BrowserContext) *Session {
	return &Session{id: id, browser: browser, createdAt: time.Now()}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Page() output.Page {
	return s.browser.Page()
}

func (s *Session) LastURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastURL
}

func (s *Session) SetLastURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastURL = url
}

func (s *Session) record(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, label)
}

func (s *Session) snapshot() output.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return output.SessionSnapshot{
		ID:               s.id,
		LastURL:          s.lastURL,
		CompletedActions: append([]string(nil), s.completed...),
	}
}
