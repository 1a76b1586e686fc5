package prompts

import (
	"bytes"
	"fmt"
	"text/template"
)

type SystemPromptData struct {
	Actions          string
	SessionID        string
	CurrentURL       string
	CompletedActions []string
}

// SystemPrompt is a parsed system prompt template, rendered once per
// reasoning call with the session's current context.
type SystemPrompt struct {
	tmpl *template.Template
}

func NewSystemPrompt(baseTemplate string) (*SystemPrompt, error) {
	tmpl, err := template.New("system").Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}
	return &SystemPrompt{tmpl: tmpl}, nil
}

func (p *SystemPrompt) Render(data SystemPromptData) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}
