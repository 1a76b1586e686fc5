package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"smart-browser-agent/internal/domain/entity"
)

var (
	ErrDuplicateAction  = errors.New("duplicate action")
	ErrUnknownAction    = errors.New("unknown action")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// ActionRegistry is the read-only table of declared actions. Declaration
// order is preserved for prompt rendering and tool definitions.
type ActionRegistry struct {
	specs []entity.ActionSpec
	index map[entity.ActionName]int
}

func NewActionRegistry(specs ...entity.ActionSpec) (*ActionRegistry, error) {
	r := &ActionRegistry{
		specs: make([]entity.ActionSpec, 0, len(specs)),
		index: make(map[entity.ActionName]int, len(specs)),
	}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("action with empty name: %w", ErrInvalidArguments)
		}
		if _, exists := r.index[spec.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAction, spec.Name)
		}
		r.index[spec.Name] = len(r.specs)
		r.specs = append(r.specs, spec)
	}
	return r, nil
}

var (
	defaultRegistry     *ActionRegistry
	defaultRegistryOnce sync.Once
)

// DefaultActionRegistry returns the process-wide table of browser actions.
func DefaultActionRegistry() *ActionRegistry {
	defaultRegistryOnce.Do(func() {
		r, err := NewActionRegistry(BuiltinActions()...)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

func BuiltinActions() []entity.ActionSpec {
	return []entity.ActionSpec{
		{
			Name:        entity.ActionNavigate,
			Description: "Navigate to a URL and wait for the page to load.",
			Params: []entity.ParamSpec{
				{Name: "url", Type: entity.ParamString, Required: true, Description: "Absolute URL to open"},
			},
		},
		{
			Name:        entity.ActionScreenshot,
			Description: "Take a screenshot of the current page and return the saved file path.",
			Params: []entity.ParamSpec{
				{Name: "full_page", Type: entity.ParamBoolean, Description: "Capture the whole scrollable page instead of the viewport"},
			},
		},
		{
			Name:        entity.ActionClick,
			Description: "Click an element described in natural language, e.g. 'search button' or 'login link'.",
			Params: []entity.ParamSpec{
				{Name: "description", Type: entity.ParamString, Required: true, Description: "What to click"},
			},
		},
		{
			Name:        entity.ActionFill,
			Description: "Clear an input field described in natural language and type text into it.",
			Params: []entity.ParamSpec{
				{Name: "description", Type: entity.ParamString, Required: true, Description: "Which field to fill, e.g. 'email field'"},
				{Name: "text", Type: entity.ParamString, Required: true, Description: "Text to type"},
			},
		},
		{
			Name:        entity.ActionListElements,
			Description: "List the buttons, links and input fields on the current page.",
		},
		{
			Name:        entity.ActionClose,
			Description: "Close the browser session.",
		},
		{
			Name:        entity.ActionGetContent,
			Description: "Read the text of the page, or of the first element matching a CSS selector.",
			Params: []entity.ParamSpec{
				{Name: "selector", Type: entity.ParamString, Description: "Optional CSS selector"},
			},
		},
		{
			Name:        entity.ActionWaitForElement,
			Description: "Wait until an element matching a CSS selector is visible.",
			Params: []entity.ParamSpec{
				{Name: "selector", Type: entity.ParamString, Required: true, Description: "CSS selector to wait for"},
				{Name: "timeout_ms", Type: entity.ParamInteger, Description: "Maximum wait in milliseconds (default 5000)"},
			},
		},
	}
}

func (r *ActionRegistry) Get(name entity.ActionName) (entity.ActionSpec, bool) {
	i, ok := r.index[name]
	if !ok {
		return entity.ActionSpec{}, false
	}
	return r.specs[i], true
}

func (r *ActionRegistry) Definitions() []entity.ActionSpec {
	out := make([]entity.ActionSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

func (r *ActionRegistry) Names() []entity.ActionName {
	out := make([]entity.ActionName, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s.Name)
	}
	return out
}

// Describe renders one "- name(args): description" line per action.
func (r *ActionRegistry) Describe() string {
	var b strings.Builder
	for _, s := range r.specs {
		params := make([]string, 0, len(s.Params))
		for _, p := range s.Params {
			name := p.Name
			if !p.Required {
				name += "?"
			}
			params = append(params, name+": "+string(p.Type))
		}
		fmt.Fprintf(&b, "- %s(%s): %s\n", s.Name, strings.Join(params, ", "), s.Description)
	}
	return b.String()
}

// Validate checks an invocation against its declared schema and returns the
// decoded arguments. Unknown argument names are ignored.
func (r *ActionRegistry) Validate(inv entity.ActionInvocation) (entity.Arguments, error) {
	spec, ok := r.Get(inv.Name)
	if !ok {
		return nil, fmt.Errorf("%w '%s'; available actions: %s", ErrUnknownAction, inv.Name, r.nameList())
	}

	args, err := entity.ParseArguments(inv.Arguments)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrInvalidArguments, inv.Name, err)
	}

	for _, p := range spec.Params {
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Required {
				return nil, fmt.Errorf("%w for %s: missing required argument %q", ErrInvalidArguments, inv.Name, p.Name)
			}
			delete(args, p.Name)
			continue
		}
		if err := checkType(p, v); err != nil {
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidArguments, inv.Name, err)
		}
		if p.Type == entity.ParamInteger {
			args[p.Name] = int(v.(float64))
		}
	}
	return args, nil
}

func checkType(p entity.ParamSpec, v interface{}) error {
	switch p.Type {
	case entity.ParamString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("argument %q must be a string", p.Name)
		}
		if p.Required && strings.TrimSpace(s) == "" {
			return fmt.Errorf("argument %q must not be empty", p.Name)
		}
	case entity.ParamBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("argument %q must be a boolean", p.Name)
		}
	case entity.ParamInteger:
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("argument %q must be an integer", p.Name)
		}
		if f < 0 {
			return fmt.Errorf("argument %q must not be negative", p.Name)
		}
	}
	return nil
}

func (r *ActionRegistry) nameList() string {
	names := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		names = append(names, string(s.Name))
	}
	return strings.Join(names, ", ")
}
