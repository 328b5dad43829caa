package dsl

import (
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/schema"
)

// PhaseBuilder provides a fluent API for configuring a phase.
type PhaseBuilder struct {
	phase   domain.Phase
	builder *Builder
}

// Title sets the display title.
func (p *PhaseBuilder) Title(title string) *PhaseBuilder {
	p.phase.Title = title
	return p
}

// Describe sets the phase description (markdown).
func (p *PhaseBuilder) Describe(description string) *PhaseBuilder {
	p.phase.Description = description
	return p
}

// Position overrides the position assigned from insertion order.
func (p *PhaseBuilder) Position(pos int) *PhaseBuilder {
	p.phase.Position = pos
	return p
}

// MinTurns sets the minimum number of turns before the phase can be left.
func (p *PhaseBuilder) MinTurns(n int) *PhaseBuilder {
	p.phase.MinimumTurns = n
	return p
}

// Recommend sets the advisory duration of a visit.
func (p *PhaseBuilder) Recommend(seconds int) *PhaseBuilder {
	p.phase.RecommendedDurationSeconds = seconds
	return p
}

// Wait marks the phase as timed_waiting.
func (p *PhaseBuilder) Wait(seconds int, pre, post string) *PhaseBuilder {
	p.phase.Type = domain.PhaseTimedWaiting
	p.phase.Wait = &domain.WaitConfig{DurationSeconds: seconds, PreMessage: pre, PostMessage: post}
	return p
}

// Loop marks the phase as loopable within family. The reset fields are
// cleared every time the family is re-entered.
func (p *PhaseBuilder) Loop(family string, resetFields ...string) *PhaseBuilder {
	p.phase.Loopable = true
	p.phase.Family = family
	p.phase.ResetFields = resetFields
	return p
}

// Require adds a required field.
func (p *PhaseBuilder) Require(name string, s schema.Schema) *PhaseBuilder {
	p.phase.Requirements = append(p.phase.Requirements, domain.FieldRequirement{Name: name, Required: true, Schema: s})
	return p
}

// Optional adds an optional field.
func (p *PhaseBuilder) Optional(name string, s schema.Schema) *PhaseBuilder {
	p.phase.Requirements = append(p.phase.Requirements, domain.FieldRequirement{Name: name, Schema: s})
	return p
}

// Constraint adds an explicit constraint.
func (p *PhaseBuilder) Constraint(t domain.ConstraintType, value int, behavior domain.ConstraintBehavior) *PhaseBuilder {
	p.phase.Constraints = append(p.phase.Constraints, domain.PhaseConstraint{Type: t, Value: value, Behavior: behavior})
	return p
}

// Go adds an unconditional transition to the target phase.
func (p *PhaseBuilder) Go(target string) *PhaseBuilder {
	return p.edge(graph.EdgeDefinition{To: target})
}

// Branch adds a conditional transition to the target phase.
func (p *PhaseBuilder) Branch(condition, target string) *PhaseBuilder {
	return p.edge(graph.EdgeDefinition{To: target, Condition: condition})
}

// BranchAt adds a conditional transition with an explicit priority.
func (p *PhaseBuilder) BranchAt(priority int, condition, target string) *PhaseBuilder {
	return p.edge(graph.EdgeDefinition{To: target, Condition: condition, Priority: priority})
}

// Disabled declares an inactive edge. It is kept in the graph but never evaluated.
func (p *PhaseBuilder) Disabled(condition, target string) *PhaseBuilder {
	inactive := false
	return p.edge(graph.EdgeDefinition{To: target, Condition: condition, Active: &inactive})
}

// Terminal marks the phase as the completion phase of the graph.
func (p *PhaseBuilder) Terminal() *PhaseBuilder {
	p.builder.def.Completion = p.phase.ID
	return p
}

// Phase returns the underlying domain.Phase.
func (p *PhaseBuilder) Phase() domain.Phase {
	return p.phase
}

func (p *PhaseBuilder) edge(e graph.EdgeDefinition) *PhaseBuilder {
	e.From = p.phase.ID
	p.builder.edges = append(p.builder.edges, e)
	return p
}
