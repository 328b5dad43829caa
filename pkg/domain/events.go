package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventPhaseEnter    EventType = "phase_enter"
	EventPhaseLeave    EventType = "phase_leave"
	EventLoop          EventType = "loop"
	EventFieldRejected EventType = "field_rejected"
	EventBlocked       EventType = "blocked"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// PhaseEvent represents entry into, exit from or re-entry of a phase.
type PhaseEvent struct {
	EventBase
	PhaseID string `json:"phase_id"`
	Seq     int    `json:"seq"`
	Family  string `json:"family,omitempty"`
	// Duration is the visit length on leave events.
	Duration  time.Duration `json:"duration,omitempty"`
	LoopCount int           `json:"loop_count,omitempty"`
}

// FieldEvent represents a rejected field submission.
type FieldEvent struct {
	EventBase
	Rejection FieldRejection `json:"rejection"`
}

// BlockedEvent represents an evaluation that selected no edge.
type BlockedEvent struct {
	EventBase
	PhaseID string  `json:"phase_id"`
	Blocked Blocked `json:"blocked"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnPhaseEnter    func(context.Context, *PhaseEvent)
	OnPhaseLeave    func(context.Context, *PhaseEvent)
	OnLoop          func(context.Context, *PhaseEvent)
	OnFieldRejected func(context.Context, *FieldEvent)
	OnBlocked       func(context.Context, *BlockedEvent)
}

// MergeHooks combines hooks so that each callback fans out in argument order.
func MergeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	var merged LifecycleHooks
	for _, h := range hooks {
		merged.OnPhaseEnter = chain(merged.OnPhaseEnter, h.OnPhaseEnter)
		merged.OnPhaseLeave = chain(merged.OnPhaseLeave, h.OnPhaseLeave)
		merged.OnLoop = chain(merged.OnLoop, h.OnLoop)
		merged.OnFieldRejected = chain(merged.OnFieldRejected, h.OnFieldRejected)
		merged.OnBlocked = chain(merged.OnBlocked, h.OnBlocked)
	}
	return merged
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
