package main

import (
	"context"
	"errors"

	"github.com/aretw0/phasewise/internal/cli"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [graph]",
	Short: "Walk a session interactively in the terminal",
	Long: `Starts (or resumes) a session and prompts for each phase.

Type name=value pairs separated by ";" to submit fields, any other text to
record a turn, /next to advance, /go <phase> to jump, /status for a summary
and exit to stop. Sessions survive restarts when a persistent store is set.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{graphArg: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		headless, _ := cmd.Flags().GetBool("headless")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		rt, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		err = cli.RunPlay(ctx, rt.Engine, cli.PlayOptions{
			SessionID: sessionID,
			Headless:  headless,
			Input:     cmd.InOrStdin(),
			Output:    cmd.OutOrStdout(),
		})
		if sig := ctx.Signal(); sig != nil && errors.Is(err, context.Canceled) {
			logger.Info("interrupted", "signal", sig.String())
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().StringP("session", "s", "", "Session id to start or resume (random when empty)")
	playCmd.Flags().Bool("headless", false, "Plain output without banner or markdown rendering")
}
