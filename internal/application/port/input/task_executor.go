package input

import (
	"context"

	"smart-browser-agent/internal/domain/entity"
)

// TaskExecutor runs one task to completion. The returned error is non-nil
// only for failures that prevent any progress (reasoning or setup).
type TaskExecutor interface {
	Execute(ctx context.Context, task entity.Task) (*entity.TaskResult, error)
}
