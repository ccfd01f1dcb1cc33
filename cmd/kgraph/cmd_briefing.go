package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/kgraph/internal/clock"
	"github.com/openclaw/kgraph/internal/kg"
	"github.com/openclaw/kgraph/internal/nudge"
	"github.com/openclaw/kgraph/internal/storage"
)

var briefingForce bool

var briefingCmd = &cobra.Command{
	Use:   "morning-briefing",
	Short: "Print today's prioritized nudges for interactive use",
	Run: func(cmd *cobra.Command, args []string) {
		runBriefing()
	},
}

func init() {
	briefingCmd.Flags().BoolVar(&briefingForce, "force", false, "show the briefing even during quiet hours")
	rootCmd.AddCommand(briefingCmd)
}

func runBriefing() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	kgPool, err := storage.NewPool(cfg.Database.KGPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening knowledge graph database: %v\n", err)
		os.Exit(1)
	}
	defer kgPool.CloseAll()
	if err := kg.EnsureSchema(ctx, kgPool); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing schema: %v\n", err)
		os.Exit(1)
	}

	if !briefingForce && nudge.IsQuietHours(cfg.Nudge, clock.Now()) {
		fmt.Println("quiet hours in effect, skipping briefing (use --force to override)")
		return
	}

	engine := nudge.NewEngine(kgPool, cfg.Nudge)
	briefing, err := engine.MorningBriefing(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error computing briefing: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(briefing, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error formatting briefing: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
