package entity

import "strings"

const DefaultSessionID = "default"

type TaskStatus string

const (
	TaskStatusCompleted      TaskStatus = "completed"
	TaskStatusBudgetExceeded TaskStatus = "budget_exceeded"
	TaskStatusFailed         TaskStatus = "failed"
)

type Task struct {
	Instruction string
	SessionID   string
}

func NewTask(instruction, sessionID string) Task {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	return Task{
		Instruction: strings.TrimSpace(instruction),
		SessionID:   sessionID,
	}
}

type TaskResult struct {
	SessionID   string
	FinalAnswer string
	Transcript  []Turn
	Iterations  int
	Status      TaskStatus
}

func (r *TaskResult) BudgetExceeded() bool {
	return r.Status == TaskStatusBudgetExceeded
}
