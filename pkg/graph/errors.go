package graph

import (
	"fmt"
	"strings"
)

// ConfigurationError aggregates every problem found while building a graph.
type ConfigurationError struct {
	Graph    string
	Problems []string
}

func (e *ConfigurationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ConfigurationError) Error() string {
	name := e.Graph
	if name == "" {
		name = "<unnamed>"
	}
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid phase graph %s: %s", name, e.Problems[0])
	}
	return fmt.Sprintf("invalid phase graph %s: found %d problems:\n- %s", name, len(e.Problems), strings.Join(e.Problems, "\n- "))
}
