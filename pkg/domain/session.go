package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/phasewise/pkg/schema"
)

// SessionFieldValue is the latest value collected for a field.
// Values are stored in their normalized Go type (string, int64, float64, bool).
type SessionFieldValue struct {
	PhaseID   string      `json:"phase_id"`
	Name      string      `json:"name"`
	Value     any         `json:"value"`
	ValueType schema.Type `json:"value_type"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// UnmarshalJSON restores Value to the Go type recorded in ValueType, so that
// integers come back as int64 rather than float64.
func (v *SessionFieldValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		PhaseID   string          `json:"phase_id"`
		Name      string          `json:"name"`
		Value     json.RawMessage `json:"value"`
		ValueType schema.Type     `json:"value_type"`
		UpdatedAt time.Time       `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	value, err := DecodeFieldValue(raw.ValueType, raw.Value)
	if err != nil {
		return fmt.Errorf("field %s: %w", raw.Name, err)
	}

	*v = SessionFieldValue{
		PhaseID:   raw.PhaseID,
		Name:      raw.Name,
		Value:     value,
		ValueType: raw.ValueType,
		UpdatedAt: raw.UpdatedAt,
	}
	return nil
}

// DecodeFieldValue decodes a JSON encoded field value into the Go type of t.
func DecodeFieldValue(t schema.Type, data []byte) (any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	switch t {
	case schema.TypeInteger:
		var n int64
		err := json.Unmarshal(data, &n)
		return n, err
	case schema.TypeNumber:
		var f float64
		err := json.Unmarshal(data, &f)
		return f, err
	case schema.TypeBoolean:
		var b bool
		err := json.Unmarshal(data, &b)
		return b, err
	case schema.TypeString, schema.TypeEnum:
		var s string
		err := json.Unmarshal(data, &s)
		return s, err
	default:
		var v any
		err := json.Unmarshal(data, &v)
		return v, err
	}
}

// SessionPhaseState records one visit of a phase. History is retained; the
// last visit of a session is the live one.
type SessionPhaseState struct {
	Seq          int        `json:"seq"`
	PhaseID      string     `json:"phase_id"`
	MessageCount int        `json:"message_count"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	// Duration is set when the visit is finalized.
	Duration      time.Duration `json:"duration"`
	LastMessageAt *time.Time    `json:"last_message_at,omitempty"`

	RequirementsMet bool `json:"requirements_met"`
	MinimumTurnsMet bool `json:"minimum_turns_met"`
	CanTransition   bool `json:"can_transition"`
}

// Ended reports whether the visit was finalized.
func (s SessionPhaseState) Ended() bool {
	return s.EndedAt != nil
}

// FamilyTimer accumulates the time spent in a loop family across visits.
type FamilyTimer struct {
	Accumulated time.Duration `json:"accumulated"`
	LoopCount   int           `json:"loop_count"`
}

// Session is the persisted aggregate of a guided session.
type Session struct {
	ID           string `json:"id"`
	GraphName    string `json:"graph_name"`
	CurrentPhase string `json:"current_phase"`

	// Fields holds the latest value per field name, across phases.
	Fields map[string]SessionFieldValue `json:"fields"`

	// Visits holds the visit history. The last entry is the live visit.
	Visits []SessionPhaseState `json:"visits"`

	// Timers is keyed by loop family.
	Timers map[string]FamilyTimer `json:"timers"`

	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an empty session. The caller enters the first phase.
func NewSession(id, graphName string, now time.Time) *Session {
	return &Session{
		ID:        id,
		GraphName: graphName,
		Fields:    make(map[string]SessionFieldValue),
		Visits:    []SessionPhaseState{},
		Timers:    make(map[string]FamilyTimer),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Live returns the live visit, or nil for a session that never entered a phase.
// The pointer aliases the session and is only valid until Visits is appended to.
func (s *Session) Live() *SessionPhaseState {
	if len(s.Visits) == 0 {
		return nil
	}
	return &s.Visits[len(s.Visits)-1]
}

// Visited reports whether any visit of phaseID exists.
func (s *Session) Visited(phaseID string) bool {
	for _, v := range s.Visits {
		if v.PhaseID == phaseID {
			return true
		}
	}
	return false
}

// Field returns the stored value of a field.
func (s *Session) Field(name string) (SessionFieldValue, bool) {
	v, ok := s.Fields[name]
	return v, ok
}

// Values returns the stored field values keyed by name.
func (s *Session) Values() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		out[k] = v.Value
	}
	return out
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s

	c.Fields = make(map[string]SessionFieldValue, len(s.Fields))
	for k, v := range s.Fields {
		c.Fields[k] = v
	}

	c.Visits = make([]SessionPhaseState, len(s.Visits))
	for i, v := range s.Visits {
		if v.EndedAt != nil {
			t := *v.EndedAt
			v.EndedAt = &t
		}
		if v.LastMessageAt != nil {
			t := *v.LastMessageAt
			v.LastMessageAt = &t
		}
		c.Visits[i] = v
	}

	c.Timers = make(map[string]FamilyTimer, len(s.Timers))
	for k, v := range s.Timers {
		c.Timers[k] = v
	}
	return &c
}
