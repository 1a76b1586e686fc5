package output

import (
	"context"

	"smart-browser-agent/internal/domain/entity"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Messages    []entity.Turn
	Tools       []entity.ActionSpec
	Temperature float32
}

// ChatResponse carries one assistant turn. No invocations means the
// content is the final answer.
type ChatResponse struct {
	Content     string
	Invocations []entity.ActionInvocation
}
