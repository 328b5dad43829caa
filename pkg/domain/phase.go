package domain

import "github.com/aretw0/phasewise/pkg/schema"

// PhaseType defines how a phase is driven.
type PhaseType string

const (
	// PhaseConversational advances through turns exchanged with the client.
	PhaseConversational PhaseType = "conversational"
	// PhaseTimedWaiting holds the client for a fixed wait before continuing.
	PhaseTimedWaiting PhaseType = "timed_waiting"
)

// ConstraintType names the quantity a PhaseConstraint measures.
type ConstraintType string

const (
	ConstraintMinimumExchanges ConstraintType = "minimum_exchanges"
	ConstraintMinimumDuration  ConstraintType = "minimum_duration_seconds"
)

// ConstraintBehavior decides whether an unmet constraint blocks transitions.
type ConstraintBehavior string

const (
	BehaviorBlocking ConstraintBehavior = "blocking"
	BehaviorAdvisory ConstraintBehavior = "advisory"
	BehaviorWarning  ConstraintBehavior = "warning"
)

// WaitConfig configures a timed_waiting phase.
type WaitConfig struct {
	DurationSeconds int    `json:"duration_seconds" yaml:"duration_seconds" mapstructure:"duration_seconds"`
	PreMessage      string `json:"pre_message,omitempty" yaml:"pre_message,omitempty" mapstructure:"pre_message"`
	PostMessage     string `json:"post_message,omitempty" yaml:"post_message,omitempty" mapstructure:"post_message"`
}

// FieldRequirement declares a field a phase collects.
type FieldRequirement struct {
	Name     string        `json:"name" yaml:"name" mapstructure:"name"`
	Required bool          `json:"required" yaml:"required" mapstructure:"required"`
	Schema   schema.Schema `json:"schema" yaml:"schema" mapstructure:"schema"`
}

// PhaseConstraint is a minimum a visit must reach.
type PhaseConstraint struct {
	Type     ConstraintType     `json:"type" yaml:"type" mapstructure:"type"`
	Value    int                `json:"value" yaml:"value" mapstructure:"value"`
	Behavior ConstraintBehavior `json:"behavior" yaml:"behavior" mapstructure:"behavior"`
	Message  string             `json:"message,omitempty" yaml:"message,omitempty" mapstructure:"message"`
}

// Blocking reports whether an unmet constraint prevents transitions.
func (c PhaseConstraint) Blocking() bool {
	return c.Behavior == BehaviorBlocking
}

// Phase represents a step of the session graph.
type Phase struct {
	ID          string `json:"id" yaml:"id" mapstructure:"id"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Position    int    `json:"position" yaml:"position" mapstructure:"position"`

	Type PhaseType   `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Wait *WaitConfig `json:"wait,omitempty" yaml:"wait,omitempty" mapstructure:"wait"`

	// MinimumTurns is enforced as a blocking minimum_exchanges constraint.
	MinimumTurns int `json:"minimum_turns,omitempty" yaml:"minimum_turns,omitempty" mapstructure:"minimum_turns"`
	// RecommendedDurationSeconds is advisory only.
	RecommendedDurationSeconds int `json:"recommended_duration_seconds,omitempty" yaml:"recommended_duration_seconds,omitempty" mapstructure:"recommended_duration_seconds"`

	// Loop configuration. Visits of loopable phases in the same family share
	// a cumulative timer and a re-entry counter.
	Loopable    bool     `json:"loopable,omitempty" yaml:"loopable,omitempty" mapstructure:"loopable"`
	Family      string   `json:"family,omitempty" yaml:"family,omitempty" mapstructure:"family"`
	ResetFields []string `json:"reset_fields,omitempty" yaml:"reset_fields,omitempty" mapstructure:"reset_fields"`

	Requirements []FieldRequirement `json:"requirements,omitempty" yaml:"requirements,omitempty" mapstructure:"requirements"`
	Constraints  []PhaseConstraint  `json:"constraints,omitempty" yaml:"constraints,omitempty" mapstructure:"constraints"`
}

// LoopFamily returns the family the phase accounts its time to.
// Non-loopable phases have no family.
func (p Phase) LoopFamily() string {
	if !p.Loopable {
		return ""
	}
	if p.Family != "" {
		return p.Family
	}
	return p.ID
}

// Requirement looks up a declared field by name.
func (p Phase) Requirement(name string) (FieldRequirement, bool) {
	for _, r := range p.Requirements {
		if r.Name == name {
			return r, true
		}
	}
	return FieldRequirement{}, false
}
