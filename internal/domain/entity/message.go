package entity

import (
	"fmt"
)

type MessageRole string

const (
	RoleSystem      MessageRole = "system"
	RoleUser        MessageRole = "user"
	RoleAssistant   MessageRole = "assistant"
	RoleObservation MessageRole = "observation"
)

// Turn is one entry of a transcript. Invocations is only set on assistant
// turns; InvocationID, Action and IsError only on observation turns.
type Turn struct {
	Role         MessageRole
	Content      string
	Invocations  []ActionInvocation
	InvocationID string
	Action       ActionName
	IsError      bool
}

func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func AssistantTurn(content string, invocations ...ActionInvocation) Turn {
	return Turn{Role: RoleAssistant, Content: content, Invocations: invocations}
}

// Transcript is the append-only record of one task execution.
type Transcript struct {
	turns []Turn
}

func NewTranscript(turns ...Turn) *Transcript {
	t := &Transcript{}
	for _, turn := range turns {
		t.Append(turn)
	}
	return t
}

func (t *Transcript) Append(turn Turn) {
	if len(turn.Invocations) > 0 {
		turn.Invocations = append([]ActionInvocation(nil), turn.Invocations...)
	}
	t.turns = append(t.turns, turn)
}

func (t *Transcript) Len() int {
	return len(t.turns)
}

// Turns returns a copy; callers cannot rewrite history through it.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// FinalAnswer is the content of the last assistant turn.
func (t *Transcript) FinalAnswer() string {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == RoleAssistant {
			return t.turns[i].Content
		}
	}
	return ""
}

// Validate checks that every invocation of an assistant turn is answered, in
// order, by exactly one observation turn before the next assistant turn.
func (t *Transcript) Validate() error {
	var pending []ActionInvocation
	for i, turn := range t.turns {
		switch turn.Role {
		case RoleAssistant:
			if len(pending) > 0 {
				return fmt.Errorf("turn %d: %d invocation(s) of the previous assistant turn have no observation", i, len(pending))
			}
			pending = append(pending[:0], turn.Invocations...)
		case RoleObservation:
			if len(pending) == 0 {
				return fmt.Errorf("turn %d: observation %q answers no pending invocation", i, turn.InvocationID)
			}
			if pending[0].ID != turn.InvocationID {
				return fmt.Errorf("turn %d: observation %q out of order, expected %q", i, turn.InvocationID, pending[0].ID)
			}
			pending = pending[1:]
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("transcript ends with %d unanswered invocation(s)", len(pending))
	}
	return nil
}

// Observation is the outcome of executing one invocation. Err is non-empty
// for failures; the reasoning capability reads either text on its next turn.
type Observation struct {
	InvocationID string
	Action       ActionName
	Content      string
	Err          string
}

func (o Observation) Failed() bool {
	return o.Err != ""
}

func (o Observation) Text() string {
	if o.Failed() {
		return "Error: " + o.Err
	}
	return o.Content
}

func (o Observation) Turn() Turn {
	return Turn{
		Role:         RoleObservation,
		Content:      o.Text(),
		InvocationID: o.InvocationID,
		Action:       o.Action,
		IsError:      o.Failed(),
	}
}
