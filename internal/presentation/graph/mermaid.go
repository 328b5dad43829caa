package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/phasewise/pkg/domain"
	phasegraph "github.com/aretw0/phasewise/pkg/graph"
)

// Overlay contains session data to visualize on the graph.
type Overlay struct {
	Visited []string
	Current string
	// Loops maps a loop family to its re-entry count.
	Loops map[string]int
}

// SessionOverlay builds the overlay of a stored session.
func SessionOverlay(sess *domain.Session) *Overlay {
	o := &Overlay{Current: sess.CurrentPhase, Loops: make(map[string]int)}
	for _, v := range sess.Visits {
		o.Visited = append(o.Visited, v.PhaseID)
	}
	for family, timer := range sess.Timers {
		o.Loops[family] = timer.LoopCount
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the phase graph.
// Shapes:
// - Entry: ((Circle))
// - Completion: (((Double circle)))
// - Timed waiting: [/Parallelogram/]
// - Loopable: {{Hexagon}}
// - Default: [Rectangle]
// Loopable phases are grouped by family. Overlay styles are applied if provided.
func GenerateMermaid(g *phasegraph.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	families := make(map[string][]string)
	for _, p := range g.Phases() {
		safeID := sanitizeMermaidID(p.ID)

		opener, closer := "[", "]"
		switch {
		case p.ID == g.Entry():
			opener, closer = "((", "))"
		case g.IsCompletion(p.ID):
			opener, closer = "(((", ")))"
		case p.Type == domain.PhaseTimedWaiting:
			opener, closer = "[/", "/]"
		case p.Loopable:
			opener, closer = "{{", "}}"
		}

		label := p.ID
		if p.Title != "" {
			label = p.Title
		}
		label = strings.ReplaceAll(label, "\"", "'")
		if p.Wait != nil {
			label = fmt.Sprintf("%s <br/> ⏱️ %ds", label, p.Wait.DurationSeconds)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		if family := p.LoopFamily(); family != "" {
			families[family] = append(families[family], safeID)
		}
	}

	for _, e := range g.Edges() {
		arrow := "-->"
		if e.Condition != "" {
			arrow = fmt.Sprintf("-- \"%s (p%d)\" -->", strings.ReplaceAll(e.Condition, "\"", "'"), e.Priority)
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To))
	}

	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		title := "loop: " + name
		if overlay != nil && overlay.Loops[name] > 0 {
			title = fmt.Sprintf("%s (x%d)", title, overlay.Loops[name])
		}
		fmt.Fprintf(&sb, "    subgraph family_%s [\"%s\"]\n", sanitizeMermaidID(name), title)
		for _, id := range families[name] {
			fmt.Fprintf(&sb, "        %s\n", id)
		}
		sb.WriteString("    end\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.Visited {
			safeID := sanitizeMermaidID(id)
			if !visited[safeID] && safeID != "" && id != overlay.Current {
				visited[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
