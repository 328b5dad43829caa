package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/phasewise/internal/logging"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/session"
)

// TargetNext asks Transition to follow whatever edge evaluation selects.
const TargetNext = "next"

// Clock returns the current time.
type Clock func() time.Time

// Controller is the session phase state machine.
// Every mutating call runs load, mutate and save under the session lock.
type Controller struct {
	graph    atomic.Pointer[graph.Graph]
	sessions *session.Manager
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      Clock
}

// Option configures the Controller.
type Option func(*Controller)

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithLogger configures a logger for the Controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.now = clock
	}
}

// NewController creates a controller over a built graph.
func NewController(g *graph.Graph, sessions *session.Manager, opts ...Option) *Controller {
	c := &Controller{
		sessions: sessions,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.graph.Store(g)
	return c
}

// Graph returns the graph currently in use.
func (c *Controller) Graph() *graph.Graph {
	return c.graph.Load()
}

// Reload swaps the whole graph. Calls in flight finish on the graph they started with.
func (c *Controller) Reload(g *graph.Graph) {
	old := c.graph.Swap(g)
	c.logger.Info("phase graph reloaded", "graph", g.Name(), "previous", old.Name(), "phases", len(g.Phases()))
}

// Sessions returns the session manager.
func (c *Controller) Sessions() *session.Manager {
	return c.sessions
}

// Start creates the session at the entry phase, or loads it if it already exists.
func (c *Controller) Start(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	g := c.Graph()
	now := c.now()

	sess, created, err := c.sessions.LoadOrStart(ctx, sessionID, func() (*domain.Session, error) {
		sess := domain.NewSession(sessionID, g.Name(), now)
		Enter(sess, g.Entry(), now)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		c.logger.Info("session started", "session_id", sessionID, "graph", g.Name(), "phase", sess.CurrentPhase)
		c.emitEnter(ctx, sess, now)
	}
	return c.snapshot(g, sess, now)
}

// Status returns a read-only snapshot. No turn is recorded.
func (c *Controller) Status(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	sess, err := c.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return c.snapshot(c.Graph(), sess, c.now())
}

// Submit stores fields for the current phase, records a turn and commits the
// selected transition, if any.
func (c *Controller) Submit(ctx context.Context, sessionID string, fields map[string]any) (*domain.Result, error) {
	return c.apply(ctx, sessionID, request{mode: modeSubmit, fields: fields})
}

// Collect stores fields and records a turn without transitioning. A non-empty
// phaseID must name the current phase.
func (c *Controller) Collect(ctx context.Context, sessionID, phaseID string, fields map[string]any) (*domain.Result, error) {
	return c.apply(ctx, sessionID, request{mode: modeCollect, phaseID: phaseID, fields: fields})
}

// Transition commits the selected edge. Target is TargetNext or the phase ID
// the caller expects. While evaluation is blocked, the destination of any
// outgoing edge returns the block as data. Any other target fails with
// *domain.IllegalTargetError and leaves the session unchanged. No turn is recorded.
func (c *Controller) Transition(ctx context.Context, sessionID, target string) (*domain.Result, error) {
	if target == "" {
		target = TargetNext
	}
	return c.apply(ctx, sessionID, request{mode: modeTransition, target: target})
}

type mode int

const (
	modeSubmit mode = iota
	modeCollect
	modeTransition
)

type request struct {
	mode    mode
	phaseID string
	target  string
	fields  map[string]any
}

func (c *Controller) apply(ctx context.Context, sessionID string, req request) (*domain.Result, error) {
	g := c.Graph()
	var result *domain.Result
	var events []func(context.Context)

	_, err := c.sessions.Update(ctx, sessionID, func(ctx context.Context, sess *domain.Session) error {
		now := c.now()
		result, events = nil, nil
		before := sess.Clone()

		if sess.Completed {
			return fmt.Errorf("%w: %s", domain.ErrSessionCompleted, sessionID)
		}
		phase, err := g.Phase(sess.CurrentPhase)
		if err != nil {
			return err
		}

		res := &domain.Result{SessionID: sessionID, PhaseID: phase.ID}

		if req.mode != modeTransition {
			if req.phaseID != "" && req.phaseID != phase.ID {
				return fmt.Errorf("%w: requested %s, current phase is %s", domain.ErrPhaseMismatch, req.phaseID, phase.ID)
			}
			res.Accepted, res.Rejected = SubmitFields(sess, phase, req.fields, now)
			for _, r := range res.Rejected {
				c.logger.Warn("field rejected", "session_id", sessionID, "phase", phase.ID, "field", r.Field, "reason", r.Reason)
				events = append(events, c.fieldRejected(sessionID, r, now))
			}
			if err := RecordTurn(sess, now); err != nil {
				return err
			}
		}

		a, err := Assess(g, sess, now)
		if err != nil {
			return err
		}
		markVisit(sess, phase, a)

		res.Evaluation = a.Evaluation
		res.Constraints = a.Constraints
		res.Blocked = a.Decision.Blocked
		if edge := a.Decision.Edge; edge != nil {
			res.ReadyToTransition = true
			res.NextPhase = edge.To
		} else {
			c.logger.Debug("transition blocked", "session_id", sessionID, "phase", phase.ID, "reason", a.Decision.Blocked.Reason)
			events = append(events, c.blocked(sessionID, phase.ID, *a.Decision.Blocked, now))
		}

		commit := false
		switch req.mode {
		case modeSubmit:
			commit = a.Decision.Edge != nil
		case modeTransition:
			if req.target != TargetNext && !targetAllowed(g, phase.ID, a.Decision, req.target) {
				return &domain.IllegalTargetError{Phase: phase.ID, Requested: req.target, Allowed: res.NextPhase}
			}
			commit = a.Decision.Edge != nil
		}

		if commit {
			committed, looped, err := c.commit(g, sess, phase, *a.Decision.Edge, now)
			if err != nil {
				return err
			}
			events = append(events, committed...)
			res.PreviousPhase = phase.ID
			res.PhaseID = sess.CurrentPhase
			res.Transitioned = true
			res.Looped = looped
		}

		res.Completed = sess.Completed
		sess.UpdatedAt = now
		res.Changes = domain.Diff(before, sess)
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, emit := range events {
		emit(ctx)
	}
	return result, nil
}

// targetAllowed reports whether an explicit target may be requested. A blocked
// evaluation accepts the destination of any outgoing edge, so the caller gets
// the block as data. Otherwise the target must be the selected destination.
func targetAllowed(g *graph.Graph, phaseID string, d domain.Decision, target string) bool {
	if d.Edge != nil {
		return d.Edge.To == target
	}
	for _, edge := range g.OutgoingEdges(phaseID) {
		if edge.To == target {
			return true
		}
	}
	return false
}

// commit follows edge: the live visit is finalized, loop bookkeeping is applied
// on re-entry of a loopable phase and the destination is entered.
func (c *Controller) commit(g *graph.Graph, sess *domain.Session, from domain.Phase, edge domain.TransitionEdge, now time.Time) ([]func(context.Context), bool, error) {
	dest, err := g.Phase(edge.To)
	if err != nil {
		return nil, false, err
	}

	var events []func(context.Context)
	leaving := *sess.Live()
	d := Finalize(sess, from, now)
	events = append(events, c.phaseEvent(c.hooks.OnPhaseLeave, domain.EventPhaseLeave, sess.ID, leaving.Seq, from, d, now))

	looped := dest.Loopable && sess.Visited(dest.ID)
	if looped {
		count := RecordLoopVisit(sess, dest)
		ClearFields(sess, dest.ResetFields...)
		c.logger.Info("loop re-entered", "session_id", sess.ID, "phase", dest.ID, "family", dest.LoopFamily(), "loop_count", count)
		events = append(events, c.loopEvent(sess.ID, len(sess.Visits), dest, count, now))
	}

	visit := Enter(sess, dest.ID, now)
	events = append(events, c.phaseEvent(c.hooks.OnPhaseEnter, domain.EventPhaseEnter, sess.ID, visit.Seq, dest, 0, now))

	if g.IsCompletion(dest.ID) {
		sess.Completed = true
	}

	c.logger.Info("phase transition",
		"session_id", sess.ID,
		"from", from.ID,
		"to", dest.ID,
		"condition", edge.Condition,
		"completed", sess.Completed,
	)
	return events, looped, nil
}

func markVisit(sess *domain.Session, phase domain.Phase, a Assessment) {
	live := sess.Live()
	if live == nil {
		return
	}
	live.RequirementsMet = a.Evaluation.Complete()
	live.MinimumTurnsMet = live.MessageCount >= phase.MinimumTurns
	live.CanTransition = a.Decision.Edge != nil
}

func (c *Controller) snapshot(g *graph.Graph, sess *domain.Session, now time.Time) (*domain.Snapshot, error) {
	a, err := Assess(g, sess, now)
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		SessionID:   sess.ID,
		GraphName:   sess.GraphName,
		PhaseID:     sess.CurrentPhase,
		Title:       a.Phase.Title,
		Completed:   sess.Completed,
		Wait:        a.Phase.Wait,
		Evaluation:  a.Evaluation,
		Constraints: a.Constraints,
		Fields:      sess.Values(),
		Timers:      make(map[string]domain.FamilyTimer, len(sess.Timers)),
	}
	for k, v := range sess.Timers {
		snap.Timers[k] = v
	}
	if live := sess.Live(); live != nil {
		snap.Visit = *live
		snap.Elapsed = Elapsed(*live, now)
	}
	if sess.Completed {
		return snap, nil
	}
	if edge := a.Decision.Edge; edge != nil {
		snap.ReadyToTransition = true
		snap.NextPhase = edge.To
	}
	snap.Blocked = a.Decision.Blocked
	return snap, nil
}

func (c *Controller) emitEnter(ctx context.Context, sess *domain.Session, now time.Time) {
	phase, err := c.Graph().Phase(sess.CurrentPhase)
	if err != nil {
		return
	}
	c.phaseEvent(c.hooks.OnPhaseEnter, domain.EventPhaseEnter, sess.ID, sess.Live().Seq, phase, 0, now)(ctx)
}

func (c *Controller) phaseEvent(hook func(context.Context, *domain.PhaseEvent), typ domain.EventType, sessionID string, seq int, phase domain.Phase, d time.Duration, now time.Time) func(context.Context) {
	return func(ctx context.Context) {
		if hook == nil {
			return
		}
		hook(ctx, &domain.PhaseEvent{
			EventBase: domain.EventBase{Timestamp: now, Type: typ, SessionID: sessionID},
			PhaseID:   phase.ID,
			Seq:       seq,
			Family:    phase.LoopFamily(),
			Duration:  d,
		})
	}
}

func (c *Controller) loopEvent(sessionID string, seq int, phase domain.Phase, count int, now time.Time) func(context.Context) {
	return func(ctx context.Context) {
		if c.hooks.OnLoop == nil {
			return
		}
		c.hooks.OnLoop(ctx, &domain.PhaseEvent{
			EventBase: domain.EventBase{Timestamp: now, Type: domain.EventLoop, SessionID: sessionID},
			PhaseID:   phase.ID,
			Seq:       seq,
			Family:    phase.LoopFamily(),
			LoopCount: count,
		})
	}
}

func (c *Controller) fieldRejected(sessionID string, r domain.FieldRejection, now time.Time) func(context.Context) {
	return func(ctx context.Context) {
		if c.hooks.OnFieldRejected == nil {
			return
		}
		c.hooks.OnFieldRejected(ctx, &domain.FieldEvent{
			EventBase: domain.EventBase{Timestamp: now, Type: domain.EventFieldRejected, SessionID: sessionID},
			Rejection: r,
		})
	}
}

func (c *Controller) blocked(sessionID, phaseID string, b domain.Blocked, now time.Time) func(context.Context) {
	return func(ctx context.Context) {
		if c.hooks.OnBlocked == nil {
			return
		}
		c.hooks.OnBlocked(ctx, &domain.BlockedEvent{
			EventBase: domain.EventBase{Timestamp: now, Type: domain.EventBlocked, SessionID: sessionID},
			PhaseID:   phaseID,
			Blocked:   b,
		})
	}
}
