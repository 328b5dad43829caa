package phasewise_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/phasewise"
	"github.com/aretw0/phasewise/pkg/adapters/memory"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/dsl"
	"github.com/aretw0/phasewise/pkg/schema"
)

func TestFacade_Preset(t *testing.T) {
	eng, err := phasewise.New("stages")
	require.NoError(t, err)
	assert.Equal(t, "stages", eng.Name)

	ctx := context.Background()
	snap, err := eng.Start(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "stage_1_deciding_issue", snap.PhaseID)
	assert.ElementsMatch(t, []string{"selected_issue", "issue_intensity"}, snap.Evaluation.Missing)

	res, err := eng.Submit(ctx, "s1", map[string]any{
		"selected_issue":  "fear of public speaking",
		"issue_intensity": "7",
	})
	require.NoError(t, err)
	assert.True(t, res.Transitioned)
	assert.Equal(t, "stage_2_information_gathering", res.PhaseID)

	status, err := eng.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), status.Fields["issue_intensity"])
}

func TestFacade_Resolve(t *testing.T) {
	_, err := phasewise.New("")
	assert.Error(t, err)

	_, err = phasewise.New("no-such-graph")
	assert.ErrorContains(t, err, "neither a preset")

	dir := t.TempDir()
	txt := filepath.Join(dir, "graph.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = phasewise.New(txt)
	assert.ErrorContains(t, err, "unsupported graph file")
}

func TestFacade_FileGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mini.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: mini
entry: a
completion: b
phases:
  - id: a
  - id: b
edges:
  - from: a
    to: b
`), 0o644))

	eng, err := phasewise.New(path)
	require.NoError(t, err)
	assert.Equal(t, "mini", eng.Name)

	ctx := context.Background()
	_, err = eng.Start(ctx, "s")
	require.NoError(t, err)

	res, err := eng.Transition(ctx, "s", phasewise.TargetNext)
	require.NoError(t, err)
	assert.True(t, res.Completed)

	_, err = eng.Submit(ctx, "s", nil)
	assert.ErrorIs(t, err, domain.ErrSessionCompleted)
}

func TestFacade_Reload(t *testing.T) {
	b := dsl.New("v1")
	b.Add("a").Go("b")
	b.Add("b").Terminal()
	src := memory.NewSource(b.Definition())

	eng, err := phasewise.New("inline", phasewise.WithSource(src))
	require.NoError(t, err)
	assert.Equal(t, "v1", eng.Graph().Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := eng.Watch(ctx)
	require.NoError(t, err)

	next := dsl.New("v2")
	next.Add("a").Require("note", schema.String()).Go("b")
	next.Add("b").Terminal()
	src.Set(next.Definition())

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}
	require.NoError(t, eng.Reload(ctx))
	assert.Equal(t, "v2", eng.Graph().Name())

	broken := dsl.New("broken")
	broken.Add("a").Go("missing")
	src.Set(broken.Definition())
	assert.Error(t, eng.Reload(ctx))
	assert.Equal(t, "v2", eng.Graph().Name(), "invalid graph keeps the current one")
}

func TestFacade_WatchUnsupported(t *testing.T) {
	eng, err := phasewise.New("phases")
	require.NoError(t, err)
	_, err = eng.Watch(context.Background())
	assert.Error(t, err)
}

func TestFacade_Clock(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := dsl.New("timed")
	b.Add("a").Constraint(domain.ConstraintMinimumDuration, 60, domain.BehaviorBlocking).Go("b")
	b.Add("b").Terminal()

	eng, err := phasewise.New("", phasewise.WithSource(memory.NewSource(b.Definition())),
		phasewise.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = eng.Start(ctx, "s")
	require.NoError(t, err)

	res, err := eng.Transition(ctx, "s", phasewise.TargetNext)
	require.NoError(t, err)
	require.NotNil(t, res.Blocked)
	assert.Equal(t, domain.BlockConstraint, res.Blocked.Reason)

	now = now.Add(time.Minute)
	res, err = eng.Transition(ctx, "s", "b")
	require.NoError(t, err)
	assert.True(t, res.Completed)
}

func TestEngine_Check(t *testing.T) {
	eng, err := phasewise.New("stages")
	require.NoError(t, err)

	assert.NoError(t, eng.Check("stage_1_deciding_issue", map[string]any{
		"selected_issue":  "stage fright",
		"issue_intensity": 6,
	}))

	err = eng.Check("stage_1_deciding_issue", map[string]any{"issue_intensity": -1})
	assert.Len(t, schema.ValidationErrors(err), 2)

	err = eng.Check("stage_42", nil)
	assert.ErrorIs(t, err, domain.ErrPhaseNotFound)

	sessions, err := eng.Sessions().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
