package output

import "context"

// Session is the per-id browser state handed to action handlers for the
// duration of one execute call.
type Session interface {
	ID() string
	Page() Page
	LastURL() string
	SetLastURL(url string)
}

type SessionSnapshot struct {
	ID               string
	LastURL          string
	CompletedActions []string
}

type SessionManager interface {
	Acquire(ctx context.Context, id string) (Session, error)
	Release(ctx context.Context, id string) error
	ReleaseAll(ctx context.Context) error
	Lock(id string) (unlock func())
	RecordAction(id, label string)
	Snapshot(id string) SessionSnapshot
}
