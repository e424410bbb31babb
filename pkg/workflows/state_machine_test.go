package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		from, to string
		want     bool
	}{
		{"planning", "in_progress", true},
		{"planning", "on_hold", true},
		{"planning", "completed", false},
		{"in_progress", "completed", true},
		{"in_progress", "on_hold", true},
		{"on_hold", "in_progress", true},
		{"on_hold", "completed", false},
		{"completed", "in_progress", false},
		{"completed", "completed", true},
		{"unknown", "planning", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, sm.CanTransition(tt.from, tt.to))
		})
	}
}

func TestValidateWrapsSentinel(t *testing.T) {
	sm := NewStateMachine()

	assert.NoError(t, sm.Validate("planning", "in_progress"))
	err := sm.Validate("completed", "planning")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "completed -> planning")
}

func TestGetAllowedTransitions(t *testing.T) {
	sm := NewStateMachine()
	assert.ElementsMatch(t, []string{"completed", "on_hold"}, sm.GetAllowedTransitions("in_progress"))
	assert.Empty(t, sm.GetAllowedTransitions("completed"))
	assert.Empty(t, sm.GetAllowedTransitions("nope"))
}
