package domain

import "time"

// BlockReason explains why no transition was selected.
type BlockReason string

const (
	BlockFieldValidation BlockReason = "field_validation"
	BlockConstraint      BlockReason = "constraint"
	BlockNoMatchingEdge  BlockReason = "no_matching_edge"
)

// FieldRejection reports a submitted value that was not stored.
type FieldRejection struct {
	PhaseID string `json:"phase_id"`
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Reason  string `json:"reason"`
}

// Evaluation is the requirement status of a phase. Lists follow declaration order.
type Evaluation struct {
	Satisfied []string `json:"satisfied"`
	Missing   []string `json:"missing"`
	Invalid   []string `json:"invalid"`
	Optional  []string `json:"optional"`
}

// Complete reports whether every required field is present and valid.
func (e Evaluation) Complete() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// ConstraintStatus is the outcome of checking one constraint against a visit.
type ConstraintStatus struct {
	Type     ConstraintType     `json:"type"`
	Behavior ConstraintBehavior `json:"behavior"`
	Required int                `json:"required"`
	Actual   int                `json:"actual"`
	Met      bool               `json:"met"`
	Message  string             `json:"message,omitempty"`
}

// ConstraintReport groups the constraint outcomes of a visit.
// Only blocking constraints end up in Unmet.
type ConstraintReport struct {
	Satisfied  []ConstraintStatus `json:"satisfied"`
	Unmet      []ConstraintStatus `json:"unmet"`
	Advisories []ConstraintStatus `json:"advisories"`
}

// Blocking reports whether an unmet blocking constraint exists.
func (r ConstraintReport) Blocking() bool {
	return len(r.Unmet) > 0
}

// Blocked describes an evaluation that selected no edge.
type Blocked struct {
	Reason           BlockReason        `json:"reason"`
	Missing          []string           `json:"missing,omitempty"`
	Invalid          []string           `json:"invalid,omitempty"`
	UnmetConstraints []ConstraintStatus `json:"unmet_constraints,omitempty"`
}

// ConditionTrace records how one edge was considered during evaluation.
type ConditionTrace struct {
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
	Priority  int    `json:"priority"`
	Matched   bool   `json:"matched"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// Decision is the outcome of transition evaluation. Exactly one of Edge and
// Blocked is set.
type Decision struct {
	Edge    *TransitionEdge  `json:"edge,omitempty"`
	Blocked *Blocked         `json:"blocked,omitempty"`
	Trace   []ConditionTrace `json:"trace,omitempty"`
}

// Result is what a Submit, Collect or Transition call produced.
type Result struct {
	SessionID string `json:"session_id"`
	// PhaseID is the current phase after the call.
	PhaseID       string `json:"phase_id"`
	PreviousPhase string `json:"previous_phase,omitempty"`
	Transitioned  bool   `json:"transitioned"`
	// Looped is set when the transition re-entered a loop family.
	Looped    bool `json:"looped,omitempty"`
	Completed bool `json:"completed"`

	Accepted []string         `json:"accepted,omitempty"`
	Rejected []FieldRejection `json:"rejected,omitempty"`

	Evaluation  Evaluation       `json:"evaluation"`
	Constraints ConstraintReport `json:"constraints"`
	Blocked     *Blocked         `json:"blocked,omitempty"`

	// ReadyToTransition and NextPhase describe the edge evaluation would select.
	ReadyToTransition bool   `json:"ready_to_transition"`
	NextPhase         string `json:"next_phase,omitempty"`

	Changes *SessionDiff `json:"changes,omitempty"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	SessionID string `json:"session_id"`
	GraphName string `json:"graph_name"`
	PhaseID   string `json:"phase_id"`
	Title     string `json:"title,omitempty"`
	Completed bool   `json:"completed"`

	// Wait is set for timed_waiting phases; the client runs the timer.
	Wait *WaitConfig `json:"wait,omitempty"`

	Visit   SessionPhaseState `json:"visit"`
	Elapsed time.Duration     `json:"elapsed"`

	Evaluation  Evaluation             `json:"evaluation"`
	Constraints ConstraintReport       `json:"constraints"`
	Fields      map[string]any         `json:"fields"`
	Timers      map[string]FamilyTimer `json:"timers"`

	ReadyToTransition bool     `json:"ready_to_transition"`
	NextPhase         string   `json:"next_phase,omitempty"`
	Blocked           *Blocked `json:"blocked,omitempty"`
}
