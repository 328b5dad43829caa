package main

import (
	"fmt"

	"github.com/aretw0/phasewise/internal/cli"
	"github.com/aretw0/phasewise/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:         "graph [graph]",
	Short:       "Export the phase graph visualization",
	Long:        `Outputs a Mermaid diagram (graph TD) of the phase graph. With --session the diagram highlights the phases that session visited.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{graphArg: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		rt, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		var overlay *graph.Overlay
		if sessionID != "" {
			sess, err := rt.Engine.Sessions().Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("loading session %s: %w", sessionID, err)
			}
			overlay = graph.SessionOverlay(sess)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(rt.Engine.Graph(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Overlay the visit history of this session")
}
