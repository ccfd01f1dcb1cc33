package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/kgraph/internal/logging"
	"github.com/openclaw/kgraph/pkg/config"
)

// Version is set during build.
var Version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "kgraph",
	Short:   "Local-first personal knowledge graph and proactive nudge engine",
	Version: Version,
	Long: `kgraph tracks people, places, projects, and events in a local SQLite
knowledge graph, keeps a semantic memory of conversational context, and
surfaces proactive nudges (overdue follow-ups, upcoming travel, stale
projects, birthdays, relationship insights) without a network connection.

It runs as a pair of line-delimited JSON command bridges for editor/agent
integration (bridge kg, bridge nudge), a read-only REST inspection
surface (serve), and a handful of one-shot CLI conveniences (seed,
morning-briefing).`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (not read: config.yaml is looked up in ., ~/.kgraph and /etc/kgraph)")
}

// loadConfig loads configuration and initializes the global logger,
// mirroring the teacher's runMCPServer startup sequence.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureConfigDir(); err != nil {
		return nil, fmt.Errorf("preparing config directory: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	return cfg, nil
}
