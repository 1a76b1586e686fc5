package output

import "context"

type UserInteractionPort interface {
	AskQuestion(ctx context.Context, question string) (string, error)
}

// ProgressPort renders loop progress for a human watching the run.
type ProgressPort interface {
	ShowIteration(ctx context.Context, iteration, maxIterations int)
	ShowThinking(ctx context.Context, content string)
	ShowActionStart(ctx context.Context, action, arguments string)
	ShowActionResult(ctx context.Context, action, result string, isError bool)
	ShowFinalAnswer(ctx context.Context, answer string)
}

type NopProgress struct{}

func (NopProgress) ShowIteration(context.Context, int, int)                {}
func (NopProgress) ShowThinking(context.Context, string)                   {}
func (NopProgress) ShowActionStart(context.Context, string, string)        {}
func (NopProgress) ShowActionResult(context.Context, string, string, bool) {}
func (NopProgress) ShowFinalAnswer(context.Context, string)                {}
