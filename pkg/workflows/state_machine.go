package workflows

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned by Validate for a disallowed status change.
var ErrInvalidTransition = errors.New("invalid status transition")

// StateMachine enforces project status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates the project lifecycle:
// planning → in_progress → completed, with on_hold reachable from planning
// and in_progress and resuming to in_progress.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"planning":    {"in_progress", "on_hold"},
			"in_progress": {"completed", "on_hold"},
			"on_hold":     {"in_progress"},
			"completed":   {},
		},
	}
}

// CanTransition checks if a status transition is allowed. Staying in the
// same known status is always allowed.
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	if from == to {
		return true
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Validate returns ErrInvalidTransition wrapped with both states when the
// change is not allowed.
func (sm *StateMachine) Validate(from, to string) error {
	if !sm.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
