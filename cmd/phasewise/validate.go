package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/phasewise"
	"github.com/aretw0/phasewise/internal/presentation/tui"
	"github.com/aretw0/phasewise/pkg/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [graph]",
	Short: "Check the phase graph for consistency",
	Long: `Loads the graph and reports every configuration problem: unknown phases, undeclared reset fields, bad schemas and missing conditions.

With --phase and --data, a JSON object of fields is also checked against what that phase declares. No session is touched.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{graphArg: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		phaseID, _ := cmd.Flags().GetString("phase")
		data, _ := cmd.Flags().GetString("data")
		return runValidate(cmd, cfg.Graph, phaseID, data)
	},
}

func init() {
	validateCmd.Flags().String("phase", "", "phase whose fields --data is checked against")
	validateCmd.Flags().String("data", "", "JSON object of field values to check")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, ref, phaseID, data string) error {
	out := cmd.OutOrStdout()
	eng, err := phasewise.New(ref, phasewise.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", tui.Status(out, "invalid", false), err)
		return fmt.Errorf("validation failed")
	}
	g := eng.Graph()
	fmt.Fprintf(out, "%s %s: %d phases, %d edges (entry %s, completion %s)\n",
		tui.Status(out, "valid", true), g.Name(), len(g.Phases()), len(g.Edges()), g.Entry(), g.Completion())

	if phaseID == "" && data == "" {
		return nil
	}
	if phaseID == "" {
		return fmt.Errorf("--data needs --phase")
	}
	fields := map[string]any{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return fmt.Errorf("--data must be a JSON object: %w", err)
		}
	}

	err = eng.Check(phaseID, fields)
	if err == nil {
		fmt.Fprintf(out, "%s fields for %s\n", tui.Status(out, "valid", true), phaseID)
		return nil
	}
	problems := schema.ValidationErrors(err)
	if problems == nil {
		return err
	}
	fmt.Fprintf(out, "%s fields for %s\n", tui.Status(out, "invalid", false), phaseID)
	for _, p := range problems {
		fmt.Fprintf(out, "  - %v\n", p)
	}
	return fmt.Errorf("%d field problem(s) for %s", len(problems), phaseID)
}
