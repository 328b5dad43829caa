package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/phasewise/pkg/domain"
)

// LoggingHooks writes one structured line per lifecycle event.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhaseEnter: func(ctx context.Context, e *domain.PhaseEvent) {
			logger.InfoContext(ctx, "phase_enter", "session_id", e.SessionID, "phase", e.PhaseID, "seq", e.Seq)
		},
		OnPhaseLeave: func(ctx context.Context, e *domain.PhaseEvent) {
			logger.InfoContext(ctx, "phase_leave", "session_id", e.SessionID, "phase", e.PhaseID, "seq", e.Seq, "duration", e.Duration)
		},
		OnLoop: func(ctx context.Context, e *domain.PhaseEvent) {
			logger.InfoContext(ctx, "loop", "session_id", e.SessionID, "phase", e.PhaseID, "family", e.Family, "loop_count", e.LoopCount)
		},
		OnFieldRejected: func(ctx context.Context, e *domain.FieldEvent) {
			logger.WarnContext(ctx, "field_rejected", "session_id", e.SessionID, "phase", e.Rejection.PhaseID, "field", e.Rejection.Field, "reason", e.Rejection.Reason)
		},
		OnBlocked: func(ctx context.Context, e *domain.BlockedEvent) {
			logger.DebugContext(ctx, "blocked", "session_id", e.SessionID, "phase", e.PhaseID, "reason", e.Blocked.Reason)
		},
	}
}
