package loam

import (
	"github.com/aretw0/phasewise/pkg/condition"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/graph"
)

// Metadata is the raw frontmatter of a document. It is decoded with
// mapstructure once the document kind is known.
type Metadata map[string]any

// KindGraph marks the document holding the graph header.
const KindGraph = "graph"

// GraphHeader is the frontmatter of the graph document.
type GraphHeader struct {
	Kind        string                    `mapstructure:"kind"`
	Name        string                    `mapstructure:"name"`
	Description string                    `mapstructure:"description"`
	Entry       string                    `mapstructure:"entry"`
	Completion  string                    `mapstructure:"completion"`
	Conditions  map[string]condition.Spec `mapstructure:"conditions"`
}

// PhaseDocument is the frontmatter of a phase document. The markdown body
// becomes the phase description when the frontmatter has none.
type PhaseDocument struct {
	domain.Phase `mapstructure:",squash"`

	// Edges leaving the phase. From is implied.
	Edges []graph.EdgeDefinition `mapstructure:"edges"`
	// To is shorthand for a single unconditional edge.
	To string `mapstructure:"to"`
}
