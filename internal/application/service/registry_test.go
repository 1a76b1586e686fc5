package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-browser-agent/internal/domain/entity"
)

func TestNewActionRegistry_DuplicateIsConfigurationError(t *testing.T) {
	_, err := NewActionRegistry(
		entity.ActionSpec{Name: entity.ActionClick},
		entity.ActionSpec{Name: entity.ActionClick},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateAction))
}

func TestDefaultActionRegistry(t *testing.T) {
	r := DefaultActionRegistry()
	assert.Same(t, r, DefaultActionRegistry())

	assert.Equal(t, []entity.ActionName{
		entity.ActionNavigate,
		entity.ActionScreenshot,
		entity.ActionClick,
		entity.ActionFill,
		entity.ActionListElements,
		entity.ActionClose,
		entity.ActionGetContent,
		entity.ActionWaitForElement,
	}, r.Names())

	desc := r.Describe()
	assert.Contains(t, desc, "- fill(description: string, text: string):")
	assert.Contains(t, desc, "- screenshot(full_page?: boolean):")
}

func TestActionRegistry_Validate(t *testing.T) {
	r := DefaultActionRegistry()

	tests := []struct {
		name    string
		inv     entity.ActionInvocation
		wantErr error
		check   func(t *testing.T, args entity.Arguments)
	}{
		{
			name:    "unknown action",
			inv:     entity.ActionInvocation{Name: "scroll", Arguments: `{}`},
			wantErr: ErrUnknownAction,
		},
		{
			name:    "malformed json",
			inv:     entity.ActionInvocation{Name: entity.ActionNavigate, Arguments: `{"url":`},
			wantErr: ErrInvalidArguments,
		},
		{
			name:    "missing required",
			inv:     entity.ActionInvocation{Name: entity.ActionFill, Arguments: `{"description":"email field"}`},
			wantErr: ErrInvalidArguments,
		},
		{
			name:    "wrong type",
			inv:     entity.ActionInvocation{Name: entity.ActionScreenshot, Arguments: `{"full_page":"yes"}`},
			wantErr: ErrInvalidArguments,
		},
		{
			name:    "empty required string",
			inv:     entity.ActionInvocation{Name: entity.ActionClick, Arguments: `{"description":"  "}`},
			wantErr: ErrInvalidArguments,
		},
		{
			name:    "fractional integer",
			inv:     entity.ActionInvocation{Name: entity.ActionWaitForElement, Arguments: `{"selector":"#x","timeout_ms":1.5}`},
			wantErr: ErrInvalidArguments,
		},
		{
			name: "empty arguments for no-arg action",
			inv:  entity.ActionInvocation{Name: entity.ActionListElements, Arguments: ``},
			check: func(t *testing.T, args entity.Arguments) {
				assert.Empty(t, args)
			},
		},
		{
			name: "integer normalised",
			inv:  entity.ActionInvocation{Name: entity.ActionWaitForElement, Arguments: `{"selector":"#x","timeout_ms":250}`},
			check: func(t *testing.T, args entity.Arguments) {
				assert.Equal(t, 250, args.Int("timeout_ms", 0))
				assert.Equal(t, "#x", args.String("selector"))
			},
		},
		{
			name: "optional null dropped",
			inv:  entity.ActionInvocation{Name: entity.ActionScreenshot, Arguments: `{"full_page":null}`},
			check: func(t *testing.T, args entity.Arguments) {
				assert.False(t, args.Has("full_page"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := r.Validate(tt.inv)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestActionSpec_Schema(t *testing.T) {
	spec, ok := DefaultActionRegistry().Get(entity.ActionFill)
	require.True(t, ok)

	schema := spec.Schema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"description", "text"}, schema["required"])
	props := schema["properties"].(map[string]interface{})
	assert.Contains(t, props, "description")
	assert.Contains(t, props, "text")
}
