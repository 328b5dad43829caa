package runtime

import (
	"fmt"
	"time"

	"github.com/aretw0/phasewise/pkg/domain"
)

// Enter appends a new live visit of phaseID and makes it the current phase.
// The visit starts with zero turns.
func Enter(sess *domain.Session, phaseID string, now time.Time) *domain.SessionPhaseState {
	sess.CurrentPhase = phaseID
	sess.Visits = append(sess.Visits, domain.SessionPhaseState{
		Seq:       len(sess.Visits),
		PhaseID:   phaseID,
		StartedAt: now,
	})
	return sess.Live()
}

// RecordTurn counts one exchange in the live visit.
func RecordTurn(sess *domain.Session, now time.Time) error {
	live := sess.Live()
	if live == nil || live.Ended() {
		return fmt.Errorf("session %s has no live phase visit", sess.ID)
	}
	live.MessageCount++
	at := now
	live.LastMessageAt = &at
	return nil
}

// Elapsed returns how long a visit lasted, or has lasted so far when it is live.
func Elapsed(visit domain.SessionPhaseState, now time.Time) time.Duration {
	if visit.Ended() {
		return visit.Duration
	}
	if d := now.Sub(visit.StartedAt); d > 0 {
		return d
	}
	return 0
}

// Finalize stops the timer of the live visit. For loopable phases the visit
// duration is added to the family timer. Finalizing twice is a no-op.
func Finalize(sess *domain.Session, phase domain.Phase, now time.Time) time.Duration {
	live := sess.Live()
	if live == nil || live.Ended() {
		return 0
	}
	d := Elapsed(*live, now)
	ended := now
	live.EndedAt = &ended
	live.Duration = d

	if family := phase.LoopFamily(); family != "" {
		timer := sess.Timers[family]
		timer.Accumulated += d
		setTimer(sess, family, timer)
	}
	return d
}

// RecordLoopVisit counts one re-entry of the phase family and returns the new count.
func RecordLoopVisit(sess *domain.Session, phase domain.Phase) int {
	family := phase.LoopFamily()
	if family == "" {
		return 0
	}
	timer := sess.Timers[family]
	timer.LoopCount++
	setTimer(sess, family, timer)
	return timer.LoopCount
}

// FamilyElapsed is the accumulated time of a family plus the live visit when
// the live phase belongs to it.
func FamilyElapsed(sess *domain.Session, live domain.Phase, family string, now time.Time) time.Duration {
	total := sess.Timers[family].Accumulated
	if v := sess.Live(); v != nil && !v.Ended() && live.LoopFamily() == family {
		total += Elapsed(*v, now)
	}
	return total
}

// CheckConstraints measures the live visit against the phase constraints.
// MinimumTurns counts as a blocking minimum_exchanges constraint; the
// recommended duration is reported as an advisory.
func CheckConstraints(phase domain.Phase, visit domain.SessionPhaseState, now time.Time) domain.ConstraintReport {
	var constraints []domain.PhaseConstraint
	if phase.MinimumTurns > 0 {
		constraints = append(constraints, domain.PhaseConstraint{
			Type:     domain.ConstraintMinimumExchanges,
			Value:    phase.MinimumTurns,
			Behavior: domain.BehaviorBlocking,
			Message:  "minimum turns",
		})
	}
	constraints = append(constraints, phase.Constraints...)
	if phase.RecommendedDurationSeconds > 0 {
		constraints = append(constraints, domain.PhaseConstraint{
			Type:     domain.ConstraintMinimumDuration,
			Value:    phase.RecommendedDurationSeconds,
			Behavior: domain.BehaviorAdvisory,
			Message:  "recommended duration",
		})
	}

	report := domain.ConstraintReport{
		Satisfied:  []domain.ConstraintStatus{},
		Unmet:      []domain.ConstraintStatus{},
		Advisories: []domain.ConstraintStatus{},
	}
	for _, c := range constraints {
		status := domain.ConstraintStatus{
			Type:     c.Type,
			Behavior: c.Behavior,
			Required: c.Value,
			Message:  c.Message,
		}
		switch c.Type {
		case domain.ConstraintMinimumExchanges:
			status.Actual = visit.MessageCount
		case domain.ConstraintMinimumDuration:
			status.Actual = int(Elapsed(visit, now) / time.Second)
		}
		status.Met = status.Actual >= status.Required

		switch {
		case !c.Blocking():
			report.Advisories = append(report.Advisories, status)
		case status.Met:
			report.Satisfied = append(report.Satisfied, status)
		default:
			report.Unmet = append(report.Unmet, status)
		}
	}
	return report
}

func setTimer(sess *domain.Session, family string, timer domain.FamilyTimer) {
	if sess.Timers == nil {
		sess.Timers = make(map[string]domain.FamilyTimer)
	}
	sess.Timers[family] = timer
}
