package domain

// TransitionEdge defines a rule to move from one phase to another.
type TransitionEdge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`

	// Condition names a predicate that must hold for the edge to be selected.
	// If empty, the edge is the unconditional fallback of its source phase.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	Priority int  `json:"priority" yaml:"priority"`
	Active   bool `json:"active" yaml:"active"`

	// Order is the declaration index, assigned when the graph is built.
	Order int `json:"order" yaml:"order"`
}

// Unconditional reports whether the edge is a fallback edge.
func (e TransitionEdge) Unconditional() bool {
	return e.Condition == ""
}
