package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/phasewise/internal/cli"
	"github.com/aretw0/phasewise/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "phasewise",
	Short: "Phasewise runs phase graphs for guided therapy sessions",
	Long: `Phasewise walks a session through a graph of phases. Each phase declares
the fields it collects, the constraints it enforces and the edges that leave it.
Configuration comes from PHASEWISE_* environment variables; flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd, args); err != nil {
			return err
		}
		l, err := cli.NewLogger(cfg)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("graph", "g", "", "Preset name, graph file or phase directory (PHASEWISE_GRAPH)")
	flags.String("store", "", "Session store: memory, redis, sqlite or file (PHASEWISE_STORE)")
	flags.String("log-level", "", "Log level: debug, info, warn or error (PHASEWISE_LOG_LEVEL)")
	flags.String("log-format", "", "Log format: text or json (PHASEWISE_LOG_FORMAT)")
	flags.Bool("watch", false, "Reload file and directory graphs when they change (PHASEWISE_WATCH)")
}

// graphArg marks commands that accept the graph as their first argument.
const graphArg = "graph-arg"

// loadConfig parses the environment and applies the flags that were set.
func loadConfig(cmd *cobra.Command, args []string) error {
	var c config.Config
	if err := config.ParseEnv(&c); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("graph") {
		c.Graph, _ = flags.GetString("graph")
	} else if len(args) > 0 && cmd.Annotations[graphArg] == "true" {
		c.Graph = args[0]
	}
	if flags.Changed("store") {
		c.Store, _ = flags.GetString("store")
	}
	if flags.Changed("log-level") {
		c.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		c.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("watch") {
		c.Watch, _ = flags.GetBool("watch")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}
