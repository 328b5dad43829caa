// Package graphs embeds the preset phase graphs shipped with phasewise.
//
// Two variants exist for the same session concept: "stages", an eight stage
// flow, and "phases", a ten phase flow. Neither is the default for every
// deployment; the one to run is chosen by configuration.
package graphs

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/phasewise/pkg/graph"
)

//go:embed *.yaml
var presets embed.FS

const (
	Stages = "stages"
	Phases = "phases"
)

// Names lists the embedded presets.
func Names() []string {
	entries, _ := presets.ReadDir(".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Definition decodes the named preset.
func Definition(name string) (graph.Definition, error) {
	data, err := presets.ReadFile(name + ".yaml")
	if err != nil {
		return graph.Definition{}, fmt.Errorf("unknown graph preset %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return graph.ParseYAML(data)
}

// Load decodes and builds the named preset.
func Load(name string) (*graph.Graph, error) {
	def, err := Definition(name)
	if err != nil {
		return nil, err
	}
	return graph.Build(def)
}

// Source serves a preset as a ports.GraphSource.
type Source string

// Load implements ports.GraphSource.
func (s Source) Load(ctx context.Context) (graph.Definition, error) {
	return Definition(string(s))
}
