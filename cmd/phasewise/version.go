package main

import (
	"fmt"

	"github.com/aretw0/phasewise"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of phasewise",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "phasewise version %s\n", phasewise.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
