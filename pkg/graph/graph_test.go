package graph_test

import (
	"errors"
	"testing"

	"github.com/aretw0/phasewise/pkg/condition"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() graph.Definition {
	return graph.Definition{
		Name:       "mini",
		Entry:      "intake",
		Completion: "done",
		Phases: []domain.Phase{
			{ID: "done", Position: 3},
			{ID: "intake", Position: 1, Requirements: []domain.FieldRequirement{
				{Name: "selected_issue", Required: true, Schema: schema.String()},
			}},
			{ID: "check", Position: 2, Requirements: []domain.FieldRequirement{
				{Name: "suds_current", Required: true, Schema: schema.Integer().Between(0, 10)},
			}},
		},
		Edges: []graph.EdgeDefinition{
			{From: "intake", To: "check"},
			{From: "check", To: "intake"},
			{From: "check", To: "done", Condition: condition.SUDSZero},
		},
	}
}

func TestBuild_Valid(t *testing.T) {
	g, err := graph.Build(validDefinition())
	require.NoError(t, err)

	assert.Equal(t, "mini", g.Name())
	assert.Equal(t, "intake", g.Entry())
	assert.True(t, g.IsCompletion("done"))

	var ids []string
	for _, p := range g.Phases() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"intake", "check", "done"}, ids)

	reqs, err := g.Requirements("check")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "suds_current", reqs[0].Name)

	_, err = g.Phase("ghost")
	assert.ErrorIs(t, err, domain.ErrPhaseNotFound)
	_, err = g.Requirements("ghost")
	assert.ErrorIs(t, err, domain.ErrPhaseNotFound)

	spec, ok := g.Condition(condition.SUDSZero)
	assert.True(t, ok)
	assert.Equal(t, condition.KindFieldEquals, spec.Kind)
}

func TestBuild_EdgeOrdering(t *testing.T) {
	def := validDefinition()
	def.Conditions = map[string]condition.Spec{
		"low":  {Kind: condition.KindFieldBelow, Field: "suds_current", Value: 3},
		"high": {Kind: condition.KindFieldAbove, Field: "suds_current", Value: 7},
	}
	def.Edges = []graph.EdgeDefinition{
		{From: "intake", To: "check"},
		{From: "check", To: "intake"},
		{From: "check", To: "done", Condition: "low", Priority: 1},
		{From: "check", To: "intake", Condition: "high", Priority: 5},
		{From: "check", To: "done", Condition: condition.SUDSZero, Priority: 5},
	}

	g, err := graph.Build(def)
	require.NoError(t, err)

	edges := g.OutgoingEdges("check")
	require.Len(t, edges, 4)
	assert.Equal(t, "high", edges[0].Condition, "priority desc, declaration order on ties")
	assert.Equal(t, condition.SUDSZero, edges[1].Condition)
	assert.Equal(t, "low", edges[2].Condition)
	assert.True(t, edges[3].Unconditional())
	assert.Equal(t, 3, edges[0].Order)
}

func TestBuild_ConditionsOverridePresets(t *testing.T) {
	def := validDefinition()
	override := condition.Spec{Kind: condition.KindFieldBelow, Field: "suds_current", Value: 2}
	def.Conditions = map[string]condition.Spec{condition.SUDSZero: override}

	g, err := graph.Build(def)
	require.NoError(t, err)

	spec, _ := g.Condition(condition.SUDSZero)
	assert.Equal(t, override, spec)
}

func TestBuild_OutgoingEdgesIsCopy(t *testing.T) {
	g, err := graph.Build(validDefinition())
	require.NoError(t, err)

	edges := g.OutgoingEdges("check")
	edges[0].To = "mutated"
	assert.NotEqual(t, "mutated", g.OutgoingEdges("check")[0].To)

	p, _ := g.Phase("check")
	p.Requirements[0].Name = "mutated"
	again, _ := g.Phase("check")
	assert.Equal(t, "suds_current", again.Requirements[0].Name)

	*p.Requirements[0].Schema.Maximum = 99
	*again.Requirements[0].Schema.Minimum = -5
	bounds, _ := g.Phase("check")
	assert.Equal(t, 10.0, *bounds.Requirements[0].Schema.Maximum)
	assert.Equal(t, 0.0, *bounds.Requirements[0].Schema.Minimum)
	assert.Error(t, bounds.Requirements[0].Schema.Validate(11))
}

func TestBuild_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*graph.Definition)
		want   string
	}{
		{"missing name", func(d *graph.Definition) { d.Name = "" }, "graph name is required"},
		{"duplicate phase", func(d *graph.Definition) {
			d.Phases = append(d.Phases, domain.Phase{ID: "check"})
		}, `duplicate phase id "check"`},
		{"missing entry", func(d *graph.Definition) { d.Entry = "" }, "entry phase is required"},
		{"unknown entry", func(d *graph.Definition) { d.Entry = "ghost" }, `entry phase "ghost" is not declared`},
		{"unknown completion", func(d *graph.Definition) { d.Completion = "ghost" }, `completion phase "ghost" is not declared`},
		{"completion with edges", func(d *graph.Definition) {
			d.Edges = append(d.Edges, graph.EdgeDefinition{From: "done", To: "intake"})
		}, `completion phase "done" must not have outgoing edges`},
		{"unknown destination", func(d *graph.Definition) {
			d.Edges[0].To = "ghost"
		}, `unknown destination phase "ghost"`},
		{"duplicate field", func(d *graph.Definition) {
			d.Phases[1].Requirements = append(d.Phases[1].Requirements, domain.FieldRequirement{Name: "selected_issue", Schema: schema.String()})
		}, `duplicate field "selected_issue"`},
		{"invalid schema", func(d *graph.Definition) {
			d.Phases[2].Requirements[0].Schema = schema.Integer().Between(10, 0)
		}, "invalid schema"},
		{"unknown constraint type", func(d *graph.Definition) {
			d.Phases[1].Constraints = []domain.PhaseConstraint{{Type: "minimum_smiles", Value: 1}}
		}, `unknown type "minimum_smiles"`},
		{"unknown constraint behavior", func(d *graph.Definition) {
			d.Phases[1].Constraints = []domain.PhaseConstraint{{Type: domain.ConstraintMinimumExchanges, Value: 1, Behavior: "maybe"}}
		}, `unknown behavior "maybe"`},
		{"negative constraint", func(d *graph.Definition) {
			d.Phases[1].Constraints = []domain.PhaseConstraint{{Type: domain.ConstraintMinimumDuration, Value: -5}}
		}, "value must not be negative"},
		{"timed waiting without wait", func(d *graph.Definition) {
			d.Phases[1].Type = domain.PhaseTimedWaiting
		}, "timed_waiting requires a positive wait duration"},
		{"two fallbacks", func(d *graph.Definition) {
			d.Edges = append(d.Edges, graph.EdgeDefinition{From: "check", To: "done"})
		}, `phase "check" has more than one unconditional edge`},
		{"unknown condition", func(d *graph.Definition) {
			d.Edges[2].Condition = "suds_sideways"
		}, `unknown condition "suds_sideways"`},
		{"invalid custom condition", func(d *graph.Definition) {
			d.Conditions = map[string]condition.Spec{"broken": {Kind: "nope"}}
		}, `condition "broken"`},
		{"undeclared reset field", func(d *graph.Definition) {
			d.Phases[2].Loopable = true
			d.Phases[2].ResetFields = []string{"mystery"}
		}, `reset field "mystery"`},
		{"unreachable phase", func(d *graph.Definition) {
			d.Phases = append(d.Phases, domain.Phase{ID: "island"})
			d.Edges = append(d.Edges, graph.EdgeDefinition{From: "island", To: "done"})
		}, `phase "island" is unreachable`},
		{"dead end", func(d *graph.Definition) {
			d.Edges = d.Edges[1:]
		}, `phase "intake" has no active outgoing edges`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)

			_, err := graph.Build(def)
			require.Error(t, err)

			var cfgErr *graph.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuild_AggregatesProblems(t *testing.T) {
	def := validDefinition()
	def.Entry = "ghost"
	def.Edges[0].To = "nowhere"
	def.Edges[2].Condition = "unknown"

	_, err := graph.Build(def)
	var cfgErr *graph.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.GreaterOrEqual(t, len(cfgErr.Problems), 3)
	assert.Contains(t, err.Error(), "found")
}

func TestBuild_InactiveEdgesIgnored(t *testing.T) {
	inactive := false
	def := validDefinition()
	def.Edges = append(def.Edges, graph.EdgeDefinition{From: "check", To: "done", Active: &inactive})

	g, err := graph.Build(def)
	require.NoError(t, err, "an inactive second fallback is not a conflict")
	assert.Len(t, g.OutgoingEdges("check"), 2)
	assert.Len(t, g.Edges(), 4)
}

func TestBuild_LoopFamilyDefaults(t *testing.T) {
	def := validDefinition()
	def.Phases[2].Loopable = true

	g, err := graph.Build(def)
	require.NoError(t, err)

	p, _ := g.Phase("check")
	assert.Equal(t, "check", p.Family)
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
name: yaml-graph
entry: intake
completion: done
phases:
  - id: intake
    position: 1
    requirements:
      - name: issue_intensity
        required: true
        schema: {type: int, minimum: 0, maximum: 10}
      - name: notes
        schema: string
  - id: done
    position: 2
edges:
  - from: intake
    to: done
    condition: ready
conditions:
  ready:
    kind: field_above
    field: issue_intensity
    value: 0
`)

	def, err := graph.ParseYAML(data)
	require.NoError(t, err)

	g, err := graph.Build(def)
	require.NoError(t, err)

	reqs, _ := g.Requirements("intake")
	require.Len(t, reqs, 2)
	assert.Equal(t, schema.TypeInteger, reqs[0].Schema.Type)
	assert.Equal(t, schema.TypeString, reqs[1].Schema.Type)

	spec, ok := g.Condition("ready")
	require.True(t, ok)
	assert.Equal(t, condition.KindFieldAbove, spec.Kind)

	_, err = graph.ParseYAML([]byte("name: x\nbogus: true\n"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"name": "json-graph",
		"entry": "a",
		"completion": "b",
		"phases": [{"id": "a", "minimum_turns": 2}, {"id": "b"}],
		"edges": [{"from": "a", "to": "b"}]
	}`)

	def, err := graph.ParseJSON(data)
	require.NoError(t, err)
	g, err := graph.Build(def)
	require.NoError(t, err)

	p, _ := g.Phase("a")
	assert.Equal(t, 2, p.MinimumTurns)
}
