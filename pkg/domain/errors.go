package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrPhaseNotFound is returned when a phase ID is not part of the graph.
var ErrPhaseNotFound = errors.New("phase not found")

// ErrPhaseMismatch is returned when a call names a phase other than the current one.
var ErrPhaseMismatch = errors.New("phase does not match the current phase")

// ErrSessionCompleted is returned when a completed session is asked to advance.
var ErrSessionCompleted = errors.New("session already completed")

// IllegalTargetError is returned when an explicit transition target is not the
// destination selected by evaluation. The session is left unchanged.
type IllegalTargetError struct {
	Phase     string
	Requested string
	// Allowed is the selected destination, empty when evaluation is blocked.
	Allowed string
}

func (e *IllegalTargetError) Error() string {
	if e.Allowed == "" {
		return fmt.Sprintf("illegal transition %s -> %s: no transition is currently allowed", e.Phase, e.Requested)
	}
	return fmt.Sprintf("illegal transition %s -> %s: next phase is %s", e.Phase, e.Requested, e.Allowed)
}
