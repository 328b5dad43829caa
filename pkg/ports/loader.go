package ports

import (
	"context"

	"github.com/aretw0/phasewise/pkg/graph"
)

// GraphSource defines how the engine retrieves its phase graph definition.
// This allows the storage layer (YAML files, Loam, Memory) to be decoupled.
type GraphSource interface {
	// Load returns the current graph definition. The engine validates it with graph.Build.
	Load(ctx context.Context) (graph.Definition, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying graph changes.
	// It abstracts away the specific event details, signaling only that a reload is required.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
