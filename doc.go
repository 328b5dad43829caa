/*
Package phasewise is a phase workflow engine for guided brainspotting sessions.

A conversational collaborator (an LLM agent, a chat UI, the bundled terminal
runner) drives a session through a directed graph of phases. The engine owns
the graph and the per-session record: collected field values, the time spent
in every phase visit and the cumulative time of loop families. It decides when
a phase may be left and where the session goes next.

# Concept

Each phase declares the fields it collects (with a typed schema), the minimums
a visit must reach (turns, seconds) and its outgoing edges. Evaluation is
deterministic: field validation blocks first, unmet blocking constraints next,
then edges are scanned by priority and the first conditioned edge whose
predicate holds wins. An unconditional edge is the fallback. A blocked outcome
is data, never an error.

Storage, graph sources and transports are adapters around pkg/ports: memory,
redis and sqlite session stores, YAML/JSON files and markdown phase directories
as graph sources, and MCP and HTTP servers.

# Usage

	eng, err := phasewise.New("stages")
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if _, err := eng.Start(ctx, "session-123"); err != nil {
		log.Fatal(err)
	}

	res, err := eng.Submit(ctx, "session-123", map[string]any{
		"selected_issue":  "fear of public speaking",
		"issue_intensity": 7,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.PhaseID, res.Transitioned)
*/
package phasewise
