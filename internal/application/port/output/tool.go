package output

import (
	"context"

	"smart-browser-agent/internal/domain/entity"
)

// ActionHandler performs one registered action against an acquired session.
// The returned string is the success observation.
type ActionHandler interface {
	Name() entity.ActionName
	Execute(ctx context.Context, session Session, args entity.Arguments) (string, error)
}

// ActionExecutor runs one invocation and always answers with an observation.
type ActionExecutor interface {
	Execute(ctx context.Context, invocation entity.ActionInvocation, sessionID string) entity.Observation
}
