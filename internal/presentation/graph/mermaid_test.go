package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/phasewise/internal/presentation/graph"
	"github.com/aretw0/phasewise/pkg/condition"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/dsl"
	phasegraph "github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/schema"
)

func sample() *phasegraph.Graph {
	b := dsl.New("sample")
	b.Add("intake").Title(`Say "hi"`).Go("wait")
	b.Add("wait").Wait(300, "Close your eyes.", "").Go("focus")
	b.Add("focus").Loop(condition.ProcessingFamily, condition.SUDSField).Go("check")
	b.Add("check").
		Require(condition.SUDSField, schema.Integer().Between(0, 10)).
		BranchAt(2, condition.SUDSZero, "done").
		BranchAt(1, condition.SUDSAboveZeroContinue, "focus")
	b.Add("done").Terminal()
	return b.MustBuild()
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "Shapes",
			contains: []string{
				"graph TD\n",
				`intake(("Say 'hi'"))`,
				`wait[/"wait <br/> ⏱️ 300s"/]`,
				`focus{{"focus"}}`,
				`check["check"]`,
				`done((("done")))`,
			},
			excludes: []string{"classDef"},
		},
		{
			name: "Edges",
			contains: []string{
				"intake --> wait",
				`check -- "suds_zero (p2)" --> done`,
				`check -- "suds_above_zero_continue (p1)" --> focus`,
			},
		},
		{
			name: "Loop Family",
			contains: []string{
				"subgraph family_processing [\"loop: processing\"]\n        focus\n    end",
			},
		},
		{
			name:    "Overlay",
			overlay: &graph.Overlay{Visited: []string{"intake", "wait", "focus", "check", "focus"}, Current: "focus", Loops: map[string]int{"processing": 1}},
			contains: []string{
				"class intake visited;",
				"class check visited;",
				"class focus current;",
				`["loop: processing (x1)"]`,
			},
			excludes: []string{"class focus visited;", "class done"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := graph.GenerateMermaid(sample(), tt.overlay)
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("expected output to contain %q\n%s", s, out)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(out, s) {
					t.Errorf("expected output not to contain %q\n%s", s, out)
				}
			}
		})
	}
}

func TestSessionOverlay(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sess := domain.NewSession("s", "sample", now)
	sess.CurrentPhase = "check"
	sess.Visits = []domain.SessionPhaseState{{Seq: 1, PhaseID: "intake"}, {Seq: 2, PhaseID: "check"}}
	sess.Timers["processing"] = domain.FamilyTimer{LoopCount: 2}

	o := graph.SessionOverlay(sess)
	if o.Current != "check" {
		t.Errorf("current = %q", o.Current)
	}
	if len(o.Visited) != 2 || o.Visited[0] != "intake" {
		t.Errorf("visited = %v", o.Visited)
	}
	if o.Loops["processing"] != 2 {
		t.Errorf("loops = %v", o.Loops)
	}
}
