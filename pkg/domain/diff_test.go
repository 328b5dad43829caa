package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/phasewise/pkg/schema"
)

func fieldValue(name string, v any) SessionFieldValue {
	return SessionFieldValue{PhaseID: "p", Name: name, Value: v, ValueType: schema.TypeInteger}
}

func TestDiff(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	visit := SessionPhaseState{Seq: 0, PhaseID: "start", StartedAt: start}
	next := SessionPhaseState{Seq: 1, PhaseID: "next", StartedAt: start.Add(time.Minute)}
	startPhase := "start"
	nextPhase := "next"
	done := true

	tests := []struct {
		name     string
		old      *Session
		new      *Session
		wantDiff *SessionDiff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new: &Session{
				ID:           "sess-1",
				CurrentPhase: "start",
				Fields:       map[string]SessionFieldValue{"a": fieldValue("a", int64(1))},
				Visits:       []SessionPhaseState{visit},
			},
			wantDiff: &SessionDiff{
				SessionID:    "sess-1",
				CurrentPhase: &startPhase,
				Fields:       map[string]any{"a": int64(1)},
				Visits:       []SessionPhaseState{visit},
			},
		},
		{
			name: "No Changes",
			old: &Session{
				ID:           "sess-1",
				CurrentPhase: "start",
				Fields:       map[string]SessionFieldValue{"a": fieldValue("a", int64(1))},
				Visits:       []SessionPhaseState{visit},
			},
			new: &Session{
				ID:           "sess-1",
				CurrentPhase: "start",
				Fields:       map[string]SessionFieldValue{"a": fieldValue("a", int64(1))},
				Visits:       []SessionPhaseState{visit},
			},
			wantDiff: nil,
		},
		{
			name: "Transition and Completion",
			old: &Session{
				ID:           "sess-1",
				CurrentPhase: "start",
				Visits:       []SessionPhaseState{visit},
			},
			new: &Session{
				ID:           "sess-1",
				CurrentPhase: "next",
				Completed:    true,
				Visits:       []SessionPhaseState{visit, next},
			},
			wantDiff: &SessionDiff{
				SessionID:    "sess-1",
				CurrentPhase: &nextPhase,
				Completed:    &done,
				Visits:       []SessionPhaseState{next},
			},
		},
		{
			name: "Field Update and Deletion",
			old: &Session{
				ID:           "sess-1",
				CurrentPhase: "start",
				Fields: map[string]SessionFieldValue{
					"a": fieldValue("a", int64(1)),
					"b": fieldValue("b", int64(2)),
				},
			},
			new: &Session{
				ID:           "sess-1",
				CurrentPhase: "start",
				Fields: map[string]SessionFieldValue{
					"a": fieldValue("a", int64(5)),
				},
			},
			wantDiff: &SessionDiff{
				SessionID: "sess-1",
				Fields:    map[string]any{"a": int64(5), "b": nil},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if !reflect.DeepEqual(got, tt.wantDiff) {
				gotJSON, _ := json.Marshal(got)
				wantJSON, _ := json.Marshal(tt.wantDiff)
				t.Errorf("Diff() mismatch\ngot:  %s\nwant: %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestDiff_JSONShape(t *testing.T) {
	old := &Session{ID: "s", CurrentPhase: "a"}
	new := &Session{ID: "s", CurrentPhase: "b"}

	data, err := json.Marshal(Diff(old, new))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"current_phase":"b"`) {
		t.Errorf("expected current_phase in %s", out)
	}
	if strings.Contains(out, "fields") || strings.Contains(out, "visits") {
		t.Errorf("expected empty sections to be omitted, got %s", out)
	}
}
