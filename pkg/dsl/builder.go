package dsl

import (
	"github.com/aretw0/phasewise/pkg/condition"
	"github.com/aretw0/phasewise/pkg/graph"
)

// Builder manages the graph construction.
type Builder struct {
	def    graph.Definition
	phases map[string]*PhaseBuilder
	order  []string
	edges  []graph.EdgeDefinition
}

// New creates a new graph builder.
func New(name string) *Builder {
	return &Builder{
		def:    graph.Definition{Name: name},
		phases: make(map[string]*PhaseBuilder),
	}
}

// Describe sets the graph description.
func (b *Builder) Describe(description string) *Builder {
	b.def.Description = description
	return b
}

// Entry sets the entry phase. Defaults to the first phase added.
func (b *Builder) Entry(id string) *Builder {
	b.def.Entry = id
	return b
}

// Condition declares a custom named predicate.
func (b *Builder) Condition(name string, spec condition.Spec) *Builder {
	if b.def.Conditions == nil {
		b.def.Conditions = make(map[string]condition.Spec)
	}
	b.def.Conditions[name] = spec
	return b
}

// Add creates a new phase in the graph.
// If the phase already exists, it returns the existing builder.
func (b *Builder) Add(id string) *PhaseBuilder {
	if pb, ok := b.phases[id]; ok {
		return pb
	}
	pb := &PhaseBuilder{builder: b}
	pb.phase.ID = id
	pb.phase.Position = len(b.order) + 1
	b.phases[id] = pb
	b.order = append(b.order, id)
	return pb
}

// Definition returns the graph definition assembled so far.
func (b *Builder) Definition() graph.Definition {
	def := b.def
	if def.Entry == "" && len(b.order) > 0 {
		def.Entry = b.order[0]
	}
	for _, id := range b.order {
		def.Phases = append(def.Phases, b.phases[id].phase)
	}
	def.Edges = append([]graph.EdgeDefinition(nil), b.edges...)
	return def
}

// Build validates the definition and compiles it into a Graph.
func (b *Builder) Build() (*graph.Graph, error) {
	return graph.Build(b.Definition())
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *graph.Graph {
	return graph.MustBuild(b.Definition())
}
