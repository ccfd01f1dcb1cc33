package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/kgraph/internal/kg"
	"github.com/openclaw/kgraph/internal/storage"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a small sample graph for exploring kgraph",
	Long: `seed populates the knowledge graph with a handful of people, places,
events, and projects connected by relationships, so bridge/serve commands
have something to return on a fresh database.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSeed()
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := storage.NewPool(cfg.Database.KGPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening knowledge graph database: %v\n", err)
		os.Exit(1)
	}
	defer pool.CloseAll()
	if err := kg.EnsureSchema(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing schema: %v\n", err)
		os.Exit(1)
	}

	w := kg.NewWriter(pool)

	upsertEntity := func(in kg.UpsertEntityInput) {
		res, err := w.UpsertEntity(ctx, in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARN: upsert_entity %s -> %v\n", in.Name, err)
			return
		}
		fmt.Printf("%s entity %q (%s)\n", res.Action, res.Name, res.Type)
	}

	upsertRelation := func(in kg.UpsertRelationInput) {
		if _, err := w.UpsertRelation(ctx, in); err != nil {
			fmt.Fprintf(os.Stderr, "WARN: upsert_relation %v -> %v -> %v\n", in.Source, in.Target, err)
		}
	}

	f64 := func(v float64) *float64 { return &v }

	// People
	upsertEntity(kg.UpsertEntityInput{
		Name: "Jordan Lee", Type: kg.TypePerson, Confidence: f64(1.0),
		Notes: "Product lead. Fifteen years in developer tooling.",
		Metadata: kg.Metadata{
			"important_dates": map[string]any{"birthday": "04-09"},
			"pronouns":        "they/them",
		},
	})
	upsertEntity(kg.UpsertEntityInput{
		Name: "Priya Raman", Type: kg.TypePerson, Confidence: f64(1.0),
		Notes: "Engineering manager, Jordan's closest collaborator.",
		Metadata: kg.Metadata{
			"important_dates": map[string]any{"birthday": "11-22"},
		},
	})
	upsertEntity(kg.UpsertEntityInput{
		Name: "Sam Okafor", Type: kg.TypePerson, Confidence: f64(0.9),
		Notes: "Former teammate, now at a different company; worth an occasional check-in.",
	})

	// Places
	upsertEntity(kg.UpsertEntityInput{
		Name: "Austin, TX", Type: kg.TypePlace, Confidence: f64(1.0),
		Notes: "Jordan's home base.",
	})
	upsertEntity(kg.UpsertEntityInput{
		Name: "Lisbon", Type: kg.TypePlace, Confidence: f64(0.8),
		Notes: "Destination for the autumn conference trip.",
	})

	// Organizations
	upsertEntity(kg.UpsertEntityInput{
		Name: "Northwind Systems", Type: kg.TypeOrg, Confidence: f64(1.0),
		Notes: "Jordan and Priya's employer.",
		Metadata: kg.Metadata{"industry": "developer tools"},
	})

	// Events
	upsertEntity(kg.UpsertEntityInput{
		Name: "Lisbon Conference Trip", Type: kg.TypeEvent, Confidence: f64(0.8),
		Notes: "Industry conference plus a few extra days to explore the city.",
		Metadata: kg.Metadata{
			"start_date": "2026-10-12",
			"end_date":   "2026-10-18",
		},
	})

	// Projects
	upsertEntity(kg.UpsertEntityInput{
		Name: "Offline Sync Overhaul", Type: kg.TypeProject, Confidence: f64(0.9),
		Notes: "Rework of the sync engine's conflict resolution.",
		Metadata: kg.Metadata{"status": "in_progress"},
	})

	// Skills and topics
	for _, skill := range []string{"Distributed Systems", "Developer Experience", "Technical Writing"} {
		upsertEntity(kg.UpsertEntityInput{
			Name: skill, Type: kg.TypeSkill, Confidence: f64(1.0),
			Notes: "Jordan's professional expertise area.",
		})
	}
	for _, topic := range []string{"Trail Running", "Woodworking"} {
		upsertEntity(kg.UpsertEntityInput{
			Name: topic, Type: kg.TypeTopic, Confidence: f64(1.0),
			Notes: "Jordan's personal interest.",
		})
	}

	// Relationships
	upsertRelation(kg.UpsertRelationInput{Source: "Jordan Lee", Target: "Priya Raman", Type: "works_with", Strength: f64(1.0), Bidirectional: true})
	upsertRelation(kg.UpsertRelationInput{Source: "Jordan Lee", Target: "Sam Okafor", Type: "knows", Strength: f64(0.6), Bidirectional: true})
	upsertRelation(kg.UpsertRelationInput{Source: "Jordan Lee", Target: "Austin, TX", Type: "lives_in", Strength: f64(1.0)})
	upsertRelation(kg.UpsertRelationInput{Source: "Jordan Lee", Target: "Northwind Systems", Type: "works_at", Strength: f64(1.0)})
	upsertRelation(kg.UpsertRelationInput{Source: "Priya Raman", Target: "Northwind Systems", Type: "works_at", Strength: f64(1.0)})
	upsertRelation(kg.UpsertRelationInput{Source: "Jordan Lee", Target: "Lisbon Conference Trip", Type: "attending", Strength: f64(0.9)})
	upsertRelation(kg.UpsertRelationInput{Source: "Lisbon Conference Trip", Target: "Lisbon", Type: "located_in", Strength: f64(1.0)})
	upsertRelation(kg.UpsertRelationInput{Source: "Jordan Lee", Target: "Offline Sync Overhaul", Type: "works_on", Strength: f64(0.9)})
	for _, skill := range []string{"Distributed Systems", "Developer Experience", "Technical Writing"} {
		upsertRelation(kg.UpsertRelationInput{Source: "Jordan Lee", Target: skill, Type: "expert_in", Strength: f64(0.9)})
	}
	for _, topic := range []string{"Trail Running", "Woodworking"} {
		upsertRelation(kg.UpsertRelationInput{Source: "Jordan Lee", Target: topic, Type: "interested_in", Strength: f64(0.7)})
	}

	fmt.Println("seed data loaded")
}
