package runtime_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/phasewise/internal/runtime"
	"github.com/aretw0/phasewise/pkg/adapters/memory"
	"github.com/aretw0/phasewise/pkg/condition"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/dsl"
	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T, g *graph.Graph, opts ...runtime.Option) (*runtime.Controller, *fakeClock) {
	t.Helper()
	clock := newClock()
	opts = append([]runtime.Option{runtime.WithClock(clock.Now)}, opts...)
	return runtime.NewController(g, session.NewManager(memory.NewStore()), opts...), clock
}

// walkToProcessing drives a fresh session into the focused mindfulness phase.
func walkToProcessing(t *testing.T, ctx context.Context, c *runtime.Controller, id string) {
	t.Helper()
	_, err := c.Start(ctx, id)
	require.NoError(t, err)

	res, err := c.Submit(ctx, id, map[string]any{"selected_issue": "work stress", "issue_intensity": 7})
	require.NoError(t, err)
	require.True(t, res.Transitioned)

	for _, want := range []string{stage3, stage4} {
		res, err = c.Submit(ctx, id, nil)
		require.NoError(t, err)
		require.Equal(t, want, res.PhaseID)
	}
}

func TestController_ScenarioA_CollectThenTransition(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, stagesGraph())

	snap, err := c.Start(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, stage1, snap.PhaseID)
	assert.False(t, snap.ReadyToTransition)

	res, err := c.Collect(ctx, "a", stage1, map[string]any{"selected_issue": "work stress", "issue_intensity": 7})
	require.NoError(t, err)
	assert.True(t, res.ReadyToTransition)
	assert.Equal(t, stage2, res.NextPhase)
	assert.False(t, res.Transitioned, "collect never commits")
	assert.Equal(t, []string{"selected_issue", "issue_intensity"}, res.Evaluation.Satisfied)
	assert.Empty(t, res.Evaluation.Missing)

	res, err = c.Transition(ctx, "a", runtime.TargetNext)
	require.NoError(t, err)
	assert.True(t, res.Transitioned)
	assert.Equal(t, stage2, res.PhaseID)
	assert.Equal(t, stage1, res.PreviousPhase)
	require.NotNil(t, res.Changes)
	require.NotNil(t, res.Changes.CurrentPhase)
	assert.Equal(t, stage2, *res.Changes.CurrentPhase)
}

func TestController_ScenarioE_OutOfRange(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, stagesGraph())
	_, err := c.Start(ctx, "e")
	require.NoError(t, err)

	res, err := c.Submit(ctx, "e", map[string]any{"selected_issue": "work stress", "issue_intensity": 15})
	require.NoError(t, err, "validation failures are data")
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "issue_intensity", res.Rejected[0].Field)
	assert.Equal(t, []string{"selected_issue"}, res.Accepted)
	assert.Contains(t, res.Evaluation.Missing, "issue_intensity")
	assert.False(t, res.ReadyToTransition)
	assert.False(t, res.Transitioned)
	require.NotNil(t, res.Blocked)
	assert.Equal(t, domain.BlockFieldValidation, res.Blocked.Reason)

	snap, err := c.Status(ctx, "e")
	require.NoError(t, err)
	assert.NotContains(t, snap.Fields, "issue_intensity")
	assert.Equal(t, stage1, snap.PhaseID)
}

func TestController_CheckingInScenarios(t *testing.T) {
	tests := []struct {
		name      string
		processed time.Duration
		suds      int
		want      string
		looped    bool
	}{
		{"B continue processing", 12 * time.Minute, 4, stage4, true},
		{"C processing timed out", 25 * time.Minute, 4, stage6, false},
		{"D distress resolved", 25 * time.Minute, 0, stage7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, clock := newController(t, stagesGraph())
			walkToProcessing(t, ctx, c, "s")

			clock.Advance(tt.processed)
			res, err := c.Submit(ctx, "s", nil)
			require.NoError(t, err)
			require.Equal(t, stage5, res.PhaseID)

			res, err = c.Submit(ctx, "s", map[string]any{condition.SUDSField: tt.suds})
			require.NoError(t, err)
			assert.True(t, res.Transitioned)
			assert.Equal(t, tt.want, res.PhaseID)
			assert.Equal(t, tt.looped, res.Looped)
		})
	}
}

func TestController_LoopAccounting(t *testing.T) {
	ctx := context.Background()
	c, clock := newController(t, stagesGraph())
	walkToProcessing(t, ctx, c, "loop")

	checkIn := func(processing time.Duration, suds int) *domain.Result {
		t.Helper()
		clock.Advance(processing)
		res, err := c.Submit(ctx, "loop", nil)
		require.NoError(t, err)
		require.Equal(t, stage5, res.PhaseID)
		res, err = c.Submit(ctx, "loop", map[string]any{condition.SUDSField: suds})
		require.NoError(t, err)
		return res
	}

	res := checkIn(12*time.Minute, 4)
	require.Equal(t, stage4, res.PhaseID)
	snap, err := c.Status(ctx, "loop")
	require.NoError(t, err)
	assert.Equal(t, domain.FamilyTimer{Accumulated: 12 * time.Minute, LoopCount: 1}, snap.Timers[condition.ProcessingFamily])
	assert.NotContains(t, snap.Fields, condition.SUDSField, "reset fields are cleared on re-entry")
	assert.Equal(t, 0, snap.Visit.MessageCount)

	res = checkIn(5*time.Minute, 3)
	require.Equal(t, stage4, res.PhaseID)
	snap, err = c.Status(ctx, "loop")
	require.NoError(t, err)
	assert.Equal(t, domain.FamilyTimer{Accumulated: 17 * time.Minute, LoopCount: 2}, snap.Timers[condition.ProcessingFamily])

	res = checkIn(5*time.Minute, 3)
	assert.Equal(t, stage6, res.PhaseID, "cumulative processing time crossed the limit")
	assert.False(t, res.Looped)
}

func TestController_MessageCountResetsOnEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, stagesGraph())
	_, err := c.Start(ctx, "m")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		res, err := c.Collect(ctx, "m", "", map[string]any{"selected_issue": "work"})
		require.NoError(t, err)
		assert.False(t, res.Transitioned)

		snap, err := c.Status(ctx, "m")
		require.NoError(t, err)
		assert.Equal(t, i, snap.Visit.MessageCount)
	}

	res, err := c.Submit(ctx, "m", map[string]any{"issue_intensity": 3})
	require.NoError(t, err)
	require.True(t, res.Transitioned)

	snap, err := c.Status(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, stage2, snap.PhaseID)
	assert.Equal(t, 0, snap.Visit.MessageCount)
	assert.Equal(t, 1, snap.Visit.Seq)
}

func TestController_SubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, stagesGraph())
	_, err := c.Start(ctx, "i")
	require.NoError(t, err)

	fields := map[string]any{"selected_issue": "work", "issue_intensity": 42}
	first, err := c.Collect(ctx, "i", stage1, fields)
	require.NoError(t, err)
	second, err := c.Collect(ctx, "i", stage1, fields)
	require.NoError(t, err)

	assert.Equal(t, first.Evaluation, second.Evaluation)
	assert.Equal(t, first.Rejected, second.Rejected)

	snap, err := c.Status(ctx, "i")
	require.NoError(t, err)
	assert.Len(t, snap.Fields, 1)
}

func TestController_TransitionTargets(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, stagesGraph())
	_, err := c.Start(ctx, "t")
	require.NoError(t, err)

	t.Run("blocked next is data", func(t *testing.T) {
		res, err := c.Transition(ctx, "t", "next")
		require.NoError(t, err)
		assert.False(t, res.Transitioned)
		require.NotNil(t, res.Blocked)
		assert.Equal(t, domain.BlockFieldValidation, res.Blocked.Reason)
	})

	t.Run("blocked explicit edge target is data", func(t *testing.T) {
		res, err := c.Transition(ctx, "t", stage2)
		require.NoError(t, err)
		assert.False(t, res.Transitioned)
		assert.Equal(t, stage1, res.PhaseID)
		require.NotNil(t, res.Blocked)
		assert.Equal(t, domain.BlockFieldValidation, res.Blocked.Reason)
		assert.Equal(t, []string{"selected_issue", "issue_intensity"}, res.Blocked.Missing)
	})

	t.Run("blocked jump off the edges is illegal", func(t *testing.T) {
		_, err := c.Transition(ctx, "t", stage8)
		var illegal *domain.IllegalTargetError
		require.ErrorAs(t, err, &illegal)
		assert.Empty(t, illegal.Allowed)
	})

	_, err = c.Collect(ctx, "t", stage1, map[string]any{"selected_issue": "work", "issue_intensity": 2})
	require.NoError(t, err)

	t.Run("arbitrary jump is illegal", func(t *testing.T) {
		_, err := c.Transition(ctx, "t", stage8)
		var illegal *domain.IllegalTargetError
		require.ErrorAs(t, err, &illegal)
		assert.Equal(t, stage1, illegal.Phase)
		assert.Equal(t, stage8, illegal.Requested)
		assert.Equal(t, stage2, illegal.Allowed)

		snap, err := c.Status(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, stage1, snap.PhaseID)
	})

	t.Run("explicit selected target", func(t *testing.T) {
		res, err := c.Transition(ctx, "t", stage2)
		require.NoError(t, err)
		assert.True(t, res.Transitioned)
		assert.Equal(t, stage2, res.PhaseID)
	})
}

func TestController_Errors(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, stagesGraph())

	_, err := c.Submit(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = c.Status(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = c.Start(ctx, "")
	assert.Error(t, err)

	_, err = c.Start(ctx, "x")
	require.NoError(t, err)
	_, err = c.Collect(ctx, "x", stage3, map[string]any{"selected_issue": "work"})
	assert.ErrorIs(t, err, domain.ErrPhaseMismatch)

	snap, err := c.Status(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, snap.Fields, "a failed call saves nothing")
	assert.Equal(t, 0, snap.Visit.MessageCount)
}

func TestController_Completion(t *testing.T) {
	ctx := context.Background()
	c, clock := newController(t, stagesGraph())
	walkToProcessing(t, ctx, c, "done")

	clock.Advance(time.Minute)
	_, err := c.Submit(ctx, "done", nil)
	require.NoError(t, err)
	res, err := c.Submit(ctx, "done", map[string]any{condition.SUDSField: 0})
	require.NoError(t, err)
	require.Equal(t, stage7, res.PhaseID)

	res, err = c.Submit(ctx, "done", nil)
	require.NoError(t, err)
	assert.Equal(t, stage8, res.PhaseID)
	assert.True(t, res.Completed)

	snap, err := c.Status(ctx, "done")
	require.NoError(t, err)
	assert.True(t, snap.Completed)
	assert.Nil(t, snap.Blocked)
	assert.False(t, snap.ReadyToTransition)

	_, err = c.Submit(ctx, "done", nil)
	assert.ErrorIs(t, err, domain.ErrSessionCompleted)
	_, err = c.Transition(ctx, "done", "next")
	assert.ErrorIs(t, err, domain.ErrSessionCompleted)
}

func TestController_StartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	var entered atomic.Int32
	c, _ := newController(t, stagesGraph(), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnPhaseEnter: func(context.Context, *domain.PhaseEvent) { entered.Add(1) },
	}))

	_, err := c.Start(ctx, "s")
	require.NoError(t, err)
	_, err = c.Collect(ctx, "s", "", map[string]any{"selected_issue": "work"})
	require.NoError(t, err)

	snap, err := c.Start(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "work", snap.Fields["selected_issue"])
	assert.Equal(t, int32(1), entered.Load())
}

func TestController_Hooks(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var events []domain.EventType
	record := func(e domain.EventType) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}

	hooks := domain.LifecycleHooks{
		OnPhaseEnter:    func(_ context.Context, e *domain.PhaseEvent) { record(e.Type) },
		OnPhaseLeave:    func(_ context.Context, e *domain.PhaseEvent) { record(e.Type) },
		OnLoop:          func(_ context.Context, e *domain.PhaseEvent) { record(e.Type) },
		OnFieldRejected: func(_ context.Context, e *domain.FieldEvent) { record(e.Type) },
		OnBlocked:       func(_ context.Context, e *domain.BlockedEvent) { record(e.Type) },
	}
	c, clock := newController(t, stagesGraph(), runtime.WithLifecycleHooks(hooks))
	walkToProcessing(t, ctx, c, "h")
	clock.Advance(time.Minute)
	_, err := c.Submit(ctx, "h", nil)
	require.NoError(t, err)

	mu.Lock()
	events = nil
	mu.Unlock()

	_, err = c.Submit(ctx, "h", map[string]any{condition.SUDSField: 11})
	require.NoError(t, err)
	_, err = c.Submit(ctx, "h", map[string]any{condition.SUDSField: 5})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.EventType{
		domain.EventFieldRejected,
		domain.EventBlocked,
		domain.EventPhaseLeave,
		domain.EventLoop,
		domain.EventPhaseEnter,
	}, events)
}

func TestController_ConcurrentSubmitsSerialize(t *testing.T) {
	b := dsl.New("turns")
	b.Add("talk").MinTurns(10).Go("end")
	b.Add("end").Terminal()

	ctx := context.Background()
	c, _ := newController(t, b.MustBuild())
	_, err := c.Start(ctx, "c")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var transitions, completedErrs atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Submit(ctx, "c", nil)
			if errors.Is(err, domain.ErrSessionCompleted) {
				completedErrs.Add(1)
				return
			}
			if assert.NoError(t, err) && res.Transitioned {
				transitions.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), transitions.Load(), "exactly one call commits the transition")
	assert.Equal(t, int32(10), completedErrs.Load())

	sess, err := c.Sessions().Load(ctx, "c")
	require.NoError(t, err)
	require.Len(t, sess.Visits, 2)
	assert.Equal(t, 10, sess.Visits[0].MessageCount)
}

func TestController_Reload(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, stagesGraph())
	_, err := c.Start(ctx, "r")
	require.NoError(t, err)

	b := dsl.New("stages-v2")
	b.Add(stage1).Go(stage8)
	b.Add(stage8).Terminal()
	c.Reload(b.MustBuild())
	assert.Equal(t, "stages-v2", c.Graph().Name())

	res, err := c.Submit(ctx, "r", nil)
	require.NoError(t, err)
	assert.Equal(t, stage8, res.PhaseID, "running sessions continue on the new graph")
}
