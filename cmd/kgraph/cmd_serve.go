package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/kgraph/internal/kg"
	"github.com/openclaw/kgraph/internal/nudge"
	"github.com/openclaw/kgraph/internal/restapi"
	"github.com/openclaw/kgraph/internal/semanticmemory"
	"github.com/openclaw/kgraph/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the read-only REST inspection server",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.RestAPI.Enabled {
		fmt.Fprintln(os.Stderr, "rest_api.enabled is false in configuration")
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
		fmt.Fprintf(os.Stderr, "error initializing knowledge graph schema: %v\n", err)
		os.Exit(1)
	}

	memPool, err := storage.NewPool(cfg.Database.SemanticMemoryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening semantic memory database: %v\n", err)
		os.Exit(1)
	}
	defer memPool.CloseAll()
	if err := semanticmemory.EnsureSchema(ctx, memPool); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing semantic memory schema: %v\n", err)
		os.Exit(1)
	}

	reader := kg.NewReader(kgPool)
	vectors := semanticmemory.NewVectorIndex(ctx, memPool)
	memory := semanticmemory.NewStore(memPool, nil, vectors)
	engine := nudge.NewEngine(kgPool, cfg.Nudge)

	server := restapi.NewServer(reader, memory, engine, cfg)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := server.StartWithContext(runCtx, 10*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
