package observability

import (
	"context"

	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "phasewise"

// Metrics holds the engine collectors.
type Metrics struct {
	PhaseEnters   *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	Loops         *prometheus.CounterVec
	Rejected      *prometheus.CounterVec
	Blocked       *prometheus.CounterVec
	ActivePhase   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PhaseEnters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_enters_total",
			Help:      "Phase visits started, by phase.",
		}, []string{"phase"}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_visit_duration_seconds",
			Help:      "Length of finished phase visits.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"phase"}),
		Loops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_reentries_total",
			Help:      "Re-entries of loopable phases, by family.",
		}, []string{"family"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_rejections_total",
			Help:      "Submitted field values that were not stored.",
		}, []string{"phase", "field"}),
		Blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocked_evaluations_total",
			Help:      "Evaluations that selected no edge, by reason.",
		}, []string{"phase", "reason"}),
		ActivePhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_in_phase",
			Help:      "Sessions whose live visit is in the phase.",
		}, []string{"phase"}),
	}
	if reg != nil {
		reg.MustRegister(m.PhaseEnters, m.PhaseDuration, m.Loops, m.Rejected, m.Blocked, m.ActivePhase)
	}
	return m
}

// Hooks returns lifecycle callbacks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhaseEnter: func(_ context.Context, e *domain.PhaseEvent) {
			m.PhaseEnters.WithLabelValues(e.PhaseID).Inc()
			m.ActivePhase.WithLabelValues(e.PhaseID).Inc()
		},
		OnPhaseLeave: func(_ context.Context, e *domain.PhaseEvent) {
			m.PhaseDuration.WithLabelValues(e.PhaseID).Observe(e.Duration.Seconds())
			m.ActivePhase.WithLabelValues(e.PhaseID).Dec()
		},
		OnLoop: func(_ context.Context, e *domain.PhaseEvent) {
			m.Loops.WithLabelValues(e.Family).Inc()
		},
		OnFieldRejected: func(_ context.Context, e *domain.FieldEvent) {
			m.Rejected.WithLabelValues(e.Rejection.PhaseID, e.Rejection.Field).Inc()
		},
		OnBlocked: func(_ context.Context, e *domain.BlockedEvent) {
			m.Blocked.WithLabelValues(e.PhaseID, string(e.Blocked.Reason)).Inc()
		},
	}
}
