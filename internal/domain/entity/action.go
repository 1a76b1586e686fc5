package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type ActionName string

const (
	ActionNavigate       ActionName = "navigate"
	ActionScreenshot     ActionName = "screenshot"
	ActionClick          ActionName = "click"
	ActionFill           ActionName = "fill"
	ActionListElements   ActionName = "list_elements"
	ActionClose          ActionName = "close"
	ActionGetContent     ActionName = "get_content"
	ActionWaitForElement ActionName = "wait_for_element"
)

func (a ActionName) String() string {
	return string(a)
}

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamBoolean ParamType = "boolean"
	ParamInteger ParamType = "integer"
)

type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// ActionSpec declares one browser action: its name, the one-line description
// shown to the model, and the argument schema invocations are validated against.
type ActionSpec struct {
	Name        ActionName
	Description string
	Params      []ParamSpec
}

// Schema renders the argument list as a JSON-schema object, the shape both
// chat-completion tool definitions and langchaingo tools expect.
func (s ActionSpec) Schema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.Params))
	required := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		properties[p.Name] = map[string]interface{}{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// ActionInvocation is one structured request from the reasoning capability.
// Arguments holds the raw JSON object exactly as the model produced it.
type ActionInvocation struct {
	ID        string
	Name      ActionName
	Arguments string
}

// Arguments is a validated argument mapping.
type Arguments map[string]interface{}

func (a Arguments) String(name string) string {
	v, ok := a[name].(string)
	if !ok {
		return ""
	}
	return v
}

func (a Arguments) Bool(name string) bool {
	v, ok := a[name].(bool)
	return ok && v
}

func (a Arguments) Int(name string, fallback int) int {
	switch v := a[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// ParseArguments decodes the raw JSON argument object of an invocation.
// An empty string is treated as an empty object.
func ParseArguments(raw string) (Arguments, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return Arguments{}, nil
	}
	var args Arguments
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = Arguments{}
	}
	return args, nil
}

// Label renders a short human-readable label of a completed action,
// e.g. `click "search button"`.
func (inv ActionInvocation) Label(args Arguments) string {
	switch inv.Name {
	case ActionNavigate:
		return fmt.Sprintf("navigate %s", args.String("url"))
	case ActionClick:
		return fmt.Sprintf("click %s", strconv.Quote(args.String("description")))
	case ActionFill:
		return fmt.Sprintf("fill %s", strconv.Quote(args.String("description")))
	case ActionGetContent, ActionWaitForElement:
		if sel := args.String("selector"); sel != "" {
			return fmt.Sprintf("%s %s", inv.Name, sel)
		}
	}
	return inv.Name.String()
}
