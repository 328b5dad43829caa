package ports

import (
	"context"

	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/graph"
)

// SessionEngine defines the operations driving adapters (HTTP, MCP, CLI) call.
type SessionEngine interface {
	// Start creates the session at the entry phase, or returns the existing one.
	Start(ctx context.Context, sessionID string) (*domain.Snapshot, error)

	// Submit stores fields, counts a turn and commits the selected transition.
	Submit(ctx context.Context, sessionID string, fields map[string]any) (*domain.Result, error)

	// Collect stores fields for phaseID and counts a turn without transitioning.
	Collect(ctx context.Context, sessionID, phaseID string, fields map[string]any) (*domain.Result, error)

	// Transition commits the selected edge. Target is "next" or the expected destination.
	Transition(ctx context.Context, sessionID, target string) (*domain.Result, error)

	// Status returns a read-only snapshot.
	Status(ctx context.Context, sessionID string) (*domain.Snapshot, error)

	// Graph returns the graph currently in use.
	Graph() *graph.Graph
}
