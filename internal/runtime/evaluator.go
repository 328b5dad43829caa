package runtime

import (
	"time"

	"github.com/aretw0/phasewise/pkg/condition"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/graph"
)

// Assessment is the full evaluation of the current phase of a session.
type Assessment struct {
	Phase       domain.Phase
	Evaluation  domain.Evaluation
	Constraints domain.ConstraintReport
	Decision    domain.Decision
}

// Assess validates requirements, checks constraints and evaluates the
// outgoing edges of the current phase. It does not modify the session.
func Assess(g *graph.Graph, sess *domain.Session, now time.Time) (Assessment, error) {
	phase, err := g.Phase(sess.CurrentPhase)
	if err != nil {
		return Assessment{}, err
	}

	var visit domain.SessionPhaseState
	if live := sess.Live(); live != nil {
		visit = *live
	}

	a := Assessment{
		Phase:       phase,
		Evaluation:  EvaluateRequirements(sess, phase),
		Constraints: CheckConstraints(phase, visit, now),
	}
	a.Decision = Decide(g, sess, phase, a.Evaluation, a.Constraints, now)
	return a, nil
}

// Decide selects the edge to follow from the current phase.
//
// Field validation blocks first, then unmet blocking constraints. Otherwise
// edges are scanned by priority: the first conditioned edge whose predicate is
// true wins, and the first unconditional edge is used when none matches.
func Decide(g *graph.Graph, sess *domain.Session, phase domain.Phase, eval domain.Evaluation, report domain.ConstraintReport, now time.Time) domain.Decision {
	if !eval.Complete() {
		return domain.Decision{Blocked: &domain.Blocked{
			Reason:  domain.BlockFieldValidation,
			Missing: eval.Missing,
			Invalid: eval.Invalid,
		}}
	}
	if report.Blocking() {
		return domain.Decision{Blocked: &domain.Blocked{
			Reason:           domain.BlockConstraint,
			UnmetConstraints: report.Unmet,
		}}
	}

	facts := &sessionFacts{sess: sess, phase: phase, now: now}
	var decision domain.Decision
	var fallback *domain.TransitionEdge

	for _, edge := range g.OutgoingEdges(phase.ID) {
		if edge.Unconditional() {
			if fallback == nil {
				fallback = &edge
			}
			continue
		}

		spec, ok := g.Condition(edge.Condition)
		matched := ok && condition.Evaluate(spec, facts)
		decision.Trace = append(decision.Trace, domain.ConditionTrace{
			To:        edge.To,
			Condition: edge.Condition,
			Priority:  edge.Priority,
			Matched:   matched,
		})
		if matched {
			decision.Edge = &edge
			return decision
		}
	}

	if fallback != nil {
		decision.Trace = append(decision.Trace, domain.ConditionTrace{
			To:       fallback.To,
			Priority: fallback.Priority,
			Matched:  true,
			Fallback: true,
		})
		decision.Edge = fallback
		return decision
	}

	decision.Blocked = &domain.Blocked{Reason: domain.BlockNoMatchingEdge}
	return decision
}

// sessionFacts exposes a session to condition predicates.
type sessionFacts struct {
	sess  *domain.Session
	phase domain.Phase
	now   time.Time
}

func (f *sessionFacts) Field(name string) (any, bool) {
	v, ok := f.sess.Fields[name]
	if !ok || v.Value == nil {
		return nil, false
	}
	return v.Value, true
}

func (f *sessionFacts) FamilyElapsed(family string) time.Duration {
	return FamilyElapsed(f.sess, f.phase, family, f.now)
}

func (f *sessionFacts) PhaseElapsed() time.Duration {
	live := f.sess.Live()
	if live == nil {
		return 0
	}
	return Elapsed(*live, f.now)
}

func (f *sessionFacts) LoopCount(family string) int {
	return f.sess.Timers[family].LoopCount
}
