package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openclaw/kgraph/internal/dispatcher"
	"github.com/openclaw/kgraph/internal/kg"
	"github.com/openclaw/kgraph/internal/nudge"
	"github.com/openclaw/kgraph/internal/storage"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run a line-delimited JSON command bridge over stdin/stdout",
}

var bridgeKGCmd = &cobra.Command{
	Use:   "kg",
	Short: "Run the knowledge graph command bridge",
	Run: func(cmd *cobra.Command, args []string) {
		runBridge("kg", func(d *dispatcher.Dispatcher, cfg *kgDeps) error {
			dispatcher.RegisterKG(d, kg.NewWriter(cfg.kgPool), kg.NewReader(cfg.kgPool))
			return nil
		})
	},
}

var bridgeNudgeCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Run the proactive nudge command bridge",
	Run: func(cmd *cobra.Command, args []string) {
		runBridge("nudge", func(d *dispatcher.Dispatcher, cfg *kgDeps) error {
			dispatcher.RegisterNudge(d, nudge.NewEngine(cfg.kgPool, cfg.nudgeCfg))
			return nil
		})
	},
}

func init() {
	bridgeCmd.AddCommand(bridgeKGCmd, bridgeNudgeCmd)
	rootCmd.AddCommand(bridgeCmd)
}

// kgDeps bundles the storage handles a bridge registration closure needs.
type kgDeps struct {
	kgPool   *storage.Pool
	nudgeCfg nudge.Config
}

// runBridge opens the knowledge graph database, registers the requested
// command table, and runs the dispatcher loop until stdin closes or a
// termination signal arrives. Grounded on the teacher's runMCPServer
// startup/shutdown sequence (context cancellation on SIGINT/SIGTERM).
func runBridge(component string, register func(d *dispatcher.Dispatcher, deps *kgDeps) error) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	kgPool, err := storage.NewPool(cfg.Database.KGPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening knowledge graph database: %v\n", err)
		os.Exit(1)
	}
	defer kgPool.CloseAll()

	if err := kg.EnsureSchema(context.Background(), kgPool); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing schema: %v\n", err)
		os.Exit(1)
	}

	d := dispatcher.New(component, os.Stdin, os.Stdout)
	if err := register(d, &kgDeps{kgPool: kgPool, nudgeCfg: cfg.Nudge}); err != nil {
		fmt.Fprintf(os.Stderr, "error registering commands: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := d.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "bridge error: %v\n", err)
		os.Exit(1)
	}
}
