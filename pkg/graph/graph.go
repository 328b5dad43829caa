// Package graph holds the validated, immutable phase graph.
//
// A Graph is built once from a Definition. Build reports every configuration
// problem it finds in a single *ConfigurationError, so that a broken file can
// be fixed in one pass. Once built, a Graph is safe for concurrent use; the
// engine swaps the whole value on reload instead of mutating it.
package graph

import (
	"fmt"
	"sort"

	"github.com/aretw0/phasewise/pkg/condition"
	"github.com/aretw0/phasewise/pkg/domain"
)

// Graph is an immutable phase graph.
type Graph struct {
	def        Definition
	entry      string
	completion string
	phases     map[string]domain.Phase
	order      []string
	outgoing   map[string][]domain.TransitionEdge
	edges      []domain.TransitionEdge
	conditions map[string]condition.Spec
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.def.Name }

// Description returns the graph description.
func (g *Graph) Description() string { return g.def.Description }

// Entry returns the entry phase ID.
func (g *Graph) Entry() string { return g.entry }

// Completion returns the completion phase ID.
func (g *Graph) Completion() string { return g.completion }

// IsCompletion reports whether id is the completion phase.
func (g *Graph) IsCompletion(id string) bool { return id == g.completion }

// Phase returns the phase with the given ID.
func (g *Graph) Phase(id string) (domain.Phase, error) {
	p, ok := g.phases[id]
	if !ok {
		return domain.Phase{}, fmt.Errorf("%w: %s", domain.ErrPhaseNotFound, id)
	}
	return clonePhase(p), nil
}

// Requirements returns the field requirements of a phase in declaration order.
func (g *Graph) Requirements(id string) ([]domain.FieldRequirement, error) {
	p, ok := g.phases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPhaseNotFound, id)
	}
	return append([]domain.FieldRequirement(nil), p.Requirements...), nil
}

// Constraints returns the explicit constraints of a phase.
func (g *Graph) Constraints(id string) ([]domain.PhaseConstraint, error) {
	p, ok := g.phases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPhaseNotFound, id)
	}
	return append([]domain.PhaseConstraint(nil), p.Constraints...), nil
}

// OutgoingEdges returns the active edges leaving a phase, ordered by priority
// descending then declaration order.
func (g *Graph) OutgoingEdges(id string) []domain.TransitionEdge {
	return append([]domain.TransitionEdge(nil), g.outgoing[id]...)
}

// Edges returns every declared edge, inactive ones included, in declaration order.
func (g *Graph) Edges() []domain.TransitionEdge {
	return append([]domain.TransitionEdge(nil), g.edges...)
}

// Condition resolves a named predicate.
func (g *Graph) Condition(name string) (condition.Spec, bool) {
	spec, ok := g.conditions[name]
	return spec, ok
}

// Phases returns all phases ordered by position, then ID.
func (g *Graph) Phases() []domain.Phase {
	out := make([]domain.Phase, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, clonePhase(g.phases[id]))
	}
	return out
}

// Definition returns the definition the graph was built from, with defaults applied.
func (g *Graph) Definition() Definition {
	def := g.def
	def.Phases = g.Phases()
	def.Edges = append([]EdgeDefinition(nil), g.def.Edges...)
	if g.def.Conditions != nil {
		def.Conditions = make(map[string]condition.Spec, len(g.def.Conditions))
		for k, v := range g.def.Conditions {
			def.Conditions[k] = v
		}
	}
	return def
}

// Build validates a definition and freezes it into a Graph.
func Build(def Definition) (*Graph, error) {
	v := &builder{
		def:    def,
		errs:   &ConfigurationError{Graph: def.Name},
		phases: make(map[string]domain.Phase, len(def.Phases)),
	}
	g := v.build()
	if len(v.errs.Problems) > 0 {
		return nil, v.errs
	}
	return g, nil
}

// MustBuild is like Build but panics on error. Intended for presets and tests.
func MustBuild(def Definition) *Graph {
	g, err := Build(def)
	if err != nil {
		panic(err)
	}
	return g
}

type builder struct {
	def    Definition
	errs   *ConfigurationError
	phases map[string]domain.Phase
	order  []string
}

func (b *builder) build() *Graph {
	if b.def.Name == "" {
		b.errs.add("graph name is required")
	}
	if len(b.def.Phases) == 0 {
		b.errs.add("graph declares no phases")
	}

	b.collectPhases()
	b.checkResetFields()

	conditions := b.checkConditions()
	edges, outgoing := b.checkEdges(conditions)

	b.checkEndpoints(outgoing)
	b.checkReachability(outgoing)

	sort.SliceStable(b.order, func(i, j int) bool {
		pi, pj := b.phases[b.order[i]], b.phases[b.order[j]]
		if pi.Position != pj.Position {
			return pi.Position < pj.Position
		}
		return pi.ID < pj.ID
	})

	return &Graph{
		def:        b.def,
		entry:      b.def.Entry,
		completion: b.def.Completion,
		phases:     b.phases,
		order:      b.order,
		outgoing:   outgoing,
		edges:      edges,
		conditions: conditions,
	}
}

func (b *builder) collectPhases() {
	for i, p := range b.def.Phases {
		if p.ID == "" {
			b.errs.add("phase #%d has no id", i)
			continue
		}
		if _, dup := b.phases[p.ID]; dup {
			b.errs.add("duplicate phase id %q", p.ID)
			continue
		}

		if p.Type == "" {
			p.Type = domain.PhaseConversational
		}
		if p.Position == 0 {
			p.Position = i + 1
		}
		if p.Loopable && p.Family == "" {
			p.Family = p.ID
		}
		b.checkPhase(p)

		p.Constraints = normalizeConstraints(p.Constraints)
		b.phases[p.ID] = clonePhase(p)
		b.order = append(b.order, p.ID)
	}
}

func (b *builder) checkPhase(p domain.Phase) {
	switch p.Type {
	case domain.PhaseConversational:
	case domain.PhaseTimedWaiting:
		if p.Wait == nil || p.Wait.DurationSeconds <= 0 {
			b.errs.add("phase %q: timed_waiting requires a positive wait duration", p.ID)
		}
	default:
		b.errs.add("phase %q: unknown phase type %q", p.ID, p.Type)
	}

	if p.MinimumTurns < 0 {
		b.errs.add("phase %q: minimum_turns must not be negative", p.ID)
	}
	if p.RecommendedDurationSeconds < 0 {
		b.errs.add("phase %q: recommended_duration_seconds must not be negative", p.ID)
	}

	seen := make(map[string]bool, len(p.Requirements))
	for i, r := range p.Requirements {
		if r.Name == "" {
			b.errs.add("phase %q: field #%d has no name", p.ID, i)
			continue
		}
		if seen[r.Name] {
			b.errs.add("phase %q: duplicate field %q", p.ID, r.Name)
		}
		seen[r.Name] = true
		if err := r.Schema.Check(); err != nil {
			b.errs.add("phase %q: field %q: invalid schema: %v", p.ID, r.Name, err)
		}
	}

	for i, c := range p.Constraints {
		switch c.Type {
		case domain.ConstraintMinimumExchanges, domain.ConstraintMinimumDuration:
		default:
			b.errs.add("phase %q: constraint #%d: unknown type %q", p.ID, i, c.Type)
		}
		switch c.Behavior {
		case "", domain.BehaviorBlocking, domain.BehaviorAdvisory, domain.BehaviorWarning:
		default:
			b.errs.add("phase %q: constraint #%d: unknown behavior %q", p.ID, i, c.Behavior)
		}
		if c.Value < 0 {
			b.errs.add("phase %q: constraint #%d: value must not be negative", p.ID, i)
		}
	}
}

// normalizeConstraints defaults an omitted behavior to blocking.
func normalizeConstraints(in []domain.PhaseConstraint) []domain.PhaseConstraint {
	out := make([]domain.PhaseConstraint, len(in))
	for i, c := range in {
		if c.Behavior == "" {
			c.Behavior = domain.BehaviorBlocking
		}
		out[i] = c
	}
	return out
}

func (b *builder) checkResetFields() {
	declared := make(map[string]bool)
	for _, p := range b.phases {
		for _, r := range p.Requirements {
			declared[r.Name] = true
		}
	}
	for _, id := range b.order {
		for _, f := range b.phases[id].ResetFields {
			if !declared[f] {
				b.errs.add("phase %q: reset field %q is not declared by any phase", id, f)
			}
		}
	}
}

func (b *builder) checkConditions() map[string]condition.Spec {
	names := make([]string, 0, len(b.def.Conditions))
	for name := range b.def.Conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := condition.Check(b.def.Conditions[name]); err != nil {
			b.errs.add("condition %q: %v", name, err)
		}
	}
	return condition.Resolve(b.def.Conditions)
}

func (b *builder) checkEdges(conditions map[string]condition.Spec) ([]domain.TransitionEdge, map[string][]domain.TransitionEdge) {
	edges := make([]domain.TransitionEdge, 0, len(b.def.Edges))
	outgoing := make(map[string][]domain.TransitionEdge)
	fallbacks := make(map[string]int)

	for i, e := range b.def.Edges {
		edge := domain.TransitionEdge{
			From:      e.From,
			To:        e.To,
			Condition: e.Condition,
			Priority:  e.Priority,
			Active:    e.active(),
			Order:     i,
		}
		edges = append(edges, edge)

		if _, ok := b.phases[e.From]; !ok {
			b.errs.add("edge #%d: unknown source phase %q", i, e.From)
		}
		if _, ok := b.phases[e.To]; !ok {
			b.errs.add("edge #%d: unknown destination phase %q", i, e.To)
		}
		if e.Condition != "" {
			if _, ok := conditions[e.Condition]; !ok {
				b.errs.add("edge #%d (%s -> %s): unknown condition %q", i, e.From, e.To, e.Condition)
			}
		}
		if !edge.Active {
			continue
		}
		if edge.Unconditional() {
			fallbacks[e.From]++
			if fallbacks[e.From] == 2 {
				b.errs.add("phase %q has more than one unconditional edge", e.From)
			}
		}
		outgoing[e.From] = append(outgoing[e.From], edge)
	}

	for from := range outgoing {
		list := outgoing[from]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Priority != list[j].Priority {
				return list[i].Priority > list[j].Priority
			}
			return list[i].Order < list[j].Order
		})
	}
	return edges, outgoing
}

func (b *builder) checkEndpoints(outgoing map[string][]domain.TransitionEdge) {
	switch {
	case b.def.Entry == "":
		b.errs.add("entry phase is required")
	case !b.known(b.def.Entry):
		b.errs.add("entry phase %q is not declared", b.def.Entry)
	}

	switch {
	case b.def.Completion == "":
		b.errs.add("completion phase is required")
	case !b.known(b.def.Completion):
		b.errs.add("completion phase %q is not declared", b.def.Completion)
	case len(outgoing[b.def.Completion]) > 0:
		b.errs.add("completion phase %q must not have outgoing edges", b.def.Completion)
	}

	for _, id := range b.order {
		if id != b.def.Completion && len(outgoing[id]) == 0 {
			b.errs.add("phase %q has no active outgoing edges", id)
		}
	}
}

// checkReachability walks active edges breadth first from the entry phase.
func (b *builder) checkReachability(outgoing map[string][]domain.TransitionEdge) {
	if !b.known(b.def.Entry) {
		return
	}

	visited := map[string]bool{b.def.Entry: true}
	queue := []string{b.def.Entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range outgoing[current] {
			if !visited[e.To] && b.known(e.To) {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}

	for _, id := range b.order {
		if !visited[id] {
			b.errs.add("phase %q is unreachable from entry phase %q", id, b.def.Entry)
		}
	}
}

func (b *builder) known(id string) bool {
	_, ok := b.phases[id]
	return ok
}

func clonePhase(p domain.Phase) domain.Phase {
	if p.Wait != nil {
		w := *p.Wait
		p.Wait = &w
	}
	p.ResetFields = append([]string(nil), p.ResetFields...)
	p.Requirements = append([]domain.FieldRequirement(nil), p.Requirements...)
	for i := range p.Requirements {
		p.Requirements[i].Schema = p.Requirements[i].Schema.Clone()
	}
	p.Constraints = append([]domain.PhaseConstraint(nil), p.Constraints...)
	return p
}
