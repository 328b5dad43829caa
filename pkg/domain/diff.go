package domain

import (
	"reflect"
)

// SessionDiff represents the changes between two session snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentPhase *string `json:"current_phase,omitempty"`
	Completed    *bool   `json:"completed,omitempty"`

	// Fields contains only changed, added or deleted values.
	// For deletions, the key is present with a nil value.
	Fields map[string]any `json:"fields,omitempty"`

	// Visits contains visits appended since the old snapshot.
	Visits []SessionPhaseState `json:"visits,omitempty"`
}

// Diff calculates the difference between old and new.
// If old is nil, it returns a diff representing the entire new session.
func Diff(old, new *Session) *SessionDiff {
	if new == nil {
		return nil
	}

	diff := &SessionDiff{SessionID: new.ID}

	if old == nil || old.CurrentPhase != new.CurrentPhase {
		phase := new.CurrentPhase
		diff.CurrentPhase = &phase
	}
	if (old == nil && new.Completed) || (old != nil && old.Completed != new.Completed) {
		completed := new.Completed
		diff.Completed = &completed
	}

	diff.Fields = diffFields(old, new)
	diff.Visits = diffVisits(old, new)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffFields(old, new *Session) map[string]any {
	delta := make(map[string]any)

	for k, nv := range new.Fields {
		if old == nil {
			delta[k] = nv.Value
			continue
		}
		ov, exists := old.Fields[k]
		if !exists || !reflect.DeepEqual(ov.Value, nv.Value) {
			delta[k] = nv.Value
		}
	}

	if old != nil {
		for k := range old.Fields {
			if _, exists := new.Fields[k]; !exists {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffVisits assumes append-only visit history.
func diffVisits(old, new *Session) []SessionPhaseState {
	if len(new.Visits) == 0 {
		return nil
	}
	if old == nil {
		return new.Visits
	}
	if len(new.Visits) > len(old.Visits) {
		return new.Visits[len(old.Visits):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.CurrentPhase == nil &&
		d.Completed == nil &&
		len(d.Fields) == 0 &&
		len(d.Visits) == 0
}
