package runtime_test

import (
	"sync"
	"time"

	"github.com/aretw0/phasewise/pkg/condition"
	"github.com/aretw0/phasewise/pkg/dsl"
	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/schema"
)

const (
	stage1 = "stage_1_deciding_issue"
	stage2 = "stage_2_information_gathering"
	stage3 = "stage_3_finding_spot"
	stage4 = "stage_4_focused_mindfulness"
	stage5 = "stage_5_checking_in"
	stage6 = "stage_6_micro_reprocessing"
	stage7 = "stage_7_squeeze_lemon"
	stage8 = "stage_8_completion"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// stagesGraph mirrors the shape of the eight stage brainspotting flow.
func stagesGraph() *graph.Graph {
	b := dsl.New("stages")
	b.Add(stage1).
		Title("Deciding the issue").
		MinTurns(1).
		Require("selected_issue", schema.String()).
		Require("issue_intensity", schema.Integer().Between(0, 10)).
		Go(stage2)
	b.Add(stage2).
		Optional("body_location", schema.String()).
		Go(stage3)
	b.Add(stage3).Go(stage4)
	b.Add(stage4).
		Loop(condition.ProcessingFamily, condition.SUDSField).
		Recommend(300).
		Go(stage5)
	b.Add(stage5).
		Require(condition.SUDSField, schema.Integer().Between(0, 10)).
		BranchAt(3, condition.SUDSZero, stage7).
		BranchAt(2, condition.SUDSAboveZeroContinue, stage4).
		BranchAt(1, condition.SUDSAboveZeroTimeout, stage6)
	b.Add(stage6).Go(stage7)
	b.Add(stage7).Go(stage8)
	b.Add(stage8).Terminal()
	return b.MustBuild()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
