package output

import (
	"time"

	"smart-browser-agent/internal/domain/entity"
)

type MetricsPort interface {
	TaskFinished(status entity.TaskStatus)
	TurnCompleted()
	ActionExecuted(action entity.ActionName, failed bool, elapsed time.Duration)
	SessionsOpen(n int)
}

type NopMetrics struct{}

func (NopMetrics) TaskFinished(entity.TaskStatus)                        {}
func (NopMetrics) TurnCompleted()                                        {}
func (NopMetrics) ActionExecuted(entity.ActionName, bool, time.Duration) {}
func (NopMetrics) SessionsOpen(int)                                      {}
