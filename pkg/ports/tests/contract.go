package tests

import (
	"context"
	"testing"

	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/ports"
)

// GraphSourceContractTest is a reusable test suite that verifies if an adapter complies with ports.GraphSource.
// wantPhases lists the phase IDs the source is expected to expose.
func GraphSourceContractTest(t *testing.T, source ports.GraphSource, wantPhases []string) {
	t.Helper()
	ctx := context.Background()

	// 1. Test Load (Success)
	t.Run("Load_Success", func(t *testing.T) {
		def, err := source.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error loading graph: %v", err)
		}
		if def.Name == "" {
			t.Error("expected a named graph definition")
		}
	})

	// 2. Test Build (the loaded definition is valid)
	t.Run("Load_Builds", func(t *testing.T) {
		def, err := source.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error loading graph: %v", err)
		}
		if _, err := graph.Build(def); err != nil {
			t.Fatalf("loaded definition does not build: %v", err)
		}
	})

	// 3. Test Phases
	t.Run("Phases", func(t *testing.T) {
		def, err := source.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error loading graph: %v", err)
		}

		if len(def.Phases) != len(wantPhases) {
			t.Errorf("expected %d phases, got %d", len(wantPhases), len(def.Phases))
		}

		// Verify all expected IDs are present
		lookup := make(map[string]bool)
		for _, p := range def.Phases {
			lookup[p.ID] = true
		}

		for _, id := range wantPhases {
			if !lookup[id] {
				t.Errorf("phase %s missing from definition", id)
			}
		}
	})

	// 4. Test Load is repeatable
	t.Run("Load_Repeatable", func(t *testing.T) {
		first, err := source.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error loading graph: %v", err)
		}
		second, err := source.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error loading graph: %v", err)
		}
		if len(first.Edges) != len(second.Edges) || first.Entry != second.Entry {
			t.Errorf("expected repeated loads to agree, got %d/%d edges", len(first.Edges), len(second.Edges))
		}
	})
}
