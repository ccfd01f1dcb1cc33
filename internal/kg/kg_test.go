package kg

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openclaw/kgraph/internal/storage"
)

func f64(v float64) *float64 { return &v }

func newTestKG(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kg.db")
	pool, err := storage.NewPool(path)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { pool.CloseAll() })

	ctx := context.Background()
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return NewWriter(pool), NewReader(pool)
}

func TestUpsertEntityCreatesThenUpdates(t *testing.T) {
	w, r := newTestKG(t)
	ctx := context.Background()

	created, err := w.UpsertEntity(ctx, UpsertEntityInput{
		Name: "Ada Lovelace",
		Type: TypePerson,
		Notes: "mathematician",
	})
	if err != nil {
		t.Fatalf("UpsertEntity create: %v", err)
	}
	if created.Action != "created" {
		t.Fatalf("expected action created, got %s", created.Action)
	}

	updated, err := w.UpsertEntity(ctx, UpsertEntityInput{
		Name:       "ada lovelace", // case-insensitive match
		Type:       TypePerson,
		Confidence: f64(0.95),
	})
	if err != nil {
		t.Fatalf("UpsertEntity update: %v", err)
	}
	if updated.Action != "updated" {
		t.Fatalf("expected action updated, got %s", updated.Action)
	}
	if updated.ID != created.ID {
		t.Fatalf("expected same id across case-insensitive upsert, got %d vs %d", updated.ID, created.ID)
	}

	got, err := r.Get(ctx, created.Name)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Entity.MentionCount != 2 {
		t.Fatalf("expected mention_count 2, got %d", got.Entity.MentionCount)
	}
	if got.Entity.Confidence != 0.95 {
		t.Fatalf("expected confidence to take max (0.95), got %v", got.Entity.Confidence)
	}
	if got.Entity.Notes != "mathematician" {
		t.Fatalf("expected notes preserved when update supplies empty notes, got %q", got.Entity.Notes)
	}
}

func TestUpsertEntityRejectsInvalidType(t *testing.T) {
	w, _ := newTestKG(t)
	_, err := w.UpsertEntity(context.Background(), UpsertEntityInput{Name: "X", Type: "alien"})
	if err == nil {
		t.Fatal("expected error for invalid entity type")
	}
}

func TestUpsertRelationByNameAndStrengthMax(t *testing.T) {
	w, r := newTestKG(t)
	ctx := context.Background()

	alice, _ := w.UpsertEntity(ctx, UpsertEntityInput{Name: "Alice", Type: TypePerson})
	bob, _ := w.UpsertEntity(ctx, UpsertEntityInput{Name: "Bob", Type: TypePerson})

	rel, err := w.UpsertRelation(ctx, UpsertRelationInput{
		Source: "Alice", Target: "Bob", Type: "knows", Strength: f64(0.4),
	})
	if err != nil {
		t.Fatalf("UpsertRelation: %v", err)
	}
	if rel.SourceID != alice.ID || rel.TargetID != bob.ID {
		t.Fatalf("unexpected endpoints: %+v", rel)
	}

	_, err = w.UpsertRelation(ctx, UpsertRelationInput{
		Source: "Alice", Target: "Bob", Type: "knows", Strength: f64(0.9), Bidirectional: true,
	})
	if err != nil {
		t.Fatalf("UpsertRelation (strengthen): %v", err)
	}

	got, err := r.Get(ctx, "Alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Relations) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(got.Relations))
	}
	if got.Relations[0].Strength != 0.9 {
		t.Fatalf("expected strength to take max (0.9), got %v", got.Relations[0].Strength)
	}
	if got.Relations[0].Direction != "outgoing" {
		t.Fatalf("expected outgoing direction from Alice, got %s", got.Relations[0].Direction)
	}
	if !got.Relations[0].Bidirectional {
		t.Fatal("expected bidirectional to be overwritten to true")
	}
}

func TestUpsertRelationUnknownEntityFails(t *testing.T) {
	w, _ := newTestKG(t)
	_, err := w.UpsertRelation(context.Background(), UpsertRelationInput{
		Source: "Nobody", Target: "AlsoNobody", Type: "knows",
	})
	if err == nil {
		t.Fatal("expected ErrEntityNotFound")
	}
}

func TestQueryByTypeAndMetadata(t *testing.T) {
	w, r := newTestKG(t)
	ctx := context.Background()

	w.UpsertEntity(ctx, UpsertEntityInput{Name: "Acme Corp", Type: TypeOrg, Metadata: Metadata{"industry": "steel"}})
	w.UpsertEntity(ctx, UpsertEntityInput{Name: "Globex", Type: TypeOrg, Metadata: Metadata{"industry": "widgets"}})
	w.UpsertEntity(ctx, UpsertEntityInput{Name: "Carol", Type: TypePerson})

	res, err := r.Query(ctx, QueryInput{Type: TypeOrg})
	if err != nil {
		t.Fatalf("Query by type: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("expected 2 orgs, got %d", res.Total)
	}

	res, err = r.Query(ctx, QueryInput{Metadata: map[string]any{"industry": "steel"}})
	if err != nil {
		t.Fatalf("Query by metadata: %v", err)
	}
	if res.Total != 1 || res.Entities[0].Name != "Acme Corp" {
		t.Fatalf("expected exactly Acme Corp, got %+v", res.Entities)
	}
}

func TestQueryTextNoMatchShortCircuits(t *testing.T) {
	w, r := newTestKG(t)
	ctx := context.Background()
	w.UpsertEntity(ctx, UpsertEntityInput{Name: "Dave", Type: TypePerson})

	res, err := r.Query(ctx, QueryInput{Text: "nonexistentzzz"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Total != 0 || len(res.Entities) != 0 {
		t.Fatalf("expected empty result for unmatched text filter, got %+v", res)
	}
}

func TestNeighborsBFSFiltersOnlyFinalProjection(t *testing.T) {
	w, r := newTestKG(t)
	ctx := context.Background()

	alice, _ := w.UpsertEntity(ctx, UpsertEntityInput{Name: "Alice", Type: TypePerson})
	acme, _ := w.UpsertEntity(ctx, UpsertEntityInput{Name: "Acme", Type: TypeOrg})
	bob, _ := w.UpsertEntity(ctx, UpsertEntityInput{Name: "Bob", Type: TypePerson})

	w.UpsertRelation(ctx, UpsertRelationInput{Source: "Alice", Target: "Acme", Type: "works_at"})
	w.UpsertRelation(ctx, UpsertRelationInput{Source: "Acme", Target: "Bob", Type: "employs"})

	// 2-hop BFS from Alice reaches Bob only by passing through Acme (an
	// org); filtering on person must not prune the org from the walk.
	res, err := r.Neighbors(ctx, NeighborsInput{EntityID: alice.ID, Hops: 2, FilterType: TypePerson})
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	found := false
	for _, e := range res.Neighbors {
		if e.ID == bob.ID {
			found = true
		}
		if e.ID == acme.ID {
			t.Fatal("FilterType should exclude the org from the final projection")
		}
	}
	if !found {
		t.Fatal("expected Bob to be reachable via Acme even though Acme is filtered out")
	}
	if len(res.Relations) != 2 {
		t.Fatalf("expected both relations touched during BFS, got %d", len(res.Relations))
	}
}

func TestStaleExcludesFreshEntity(t *testing.T) {
	w, r := newTestKG(t)
	ctx := context.Background()
	w.UpsertEntity(ctx, UpsertEntityInput{Name: "Fresh", Type: TypeProject})

	stale, err := r.Stale(ctx, StaleInput{Days: 0})
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}
	// A just-created entity is not older than the default 14-day window.
	for _, e := range stale {
		if e.Name == "Fresh" {
			t.Fatal("freshly mentioned entity should not appear as stale")
		}
	}
}

func TestStatsCountsEntitiesAndRelations(t *testing.T) {
	w, r := newTestKG(t)
	ctx := context.Background()
	w.UpsertEntity(ctx, UpsertEntityInput{Name: "Eve", Type: TypePerson})
	w.UpsertEntity(ctx, UpsertEntityInput{Name: "Mallory", Type: TypePerson})
	w.UpsertRelation(ctx, UpsertRelationInput{Source: "Eve", Target: "Mallory", Type: "knows"})

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalEntities != 2 {
		t.Fatalf("expected 2 entities, got %d", stats.TotalEntities)
	}
	if stats.TotalRelations != 1 {
		t.Fatalf("expected 1 relation, got %d", stats.TotalRelations)
	}
	if stats.ByType[TypePerson] != 2 {
		t.Fatalf("expected 2 persons in histogram, got %d", stats.ByType[TypePerson])
	}
}

func TestDeleteEntityCascadesRelations(t *testing.T) {
	w, r := newTestKG(t)
	ctx := context.Background()
	alice, _ := w.UpsertEntity(ctx, UpsertEntityInput{Name: "Alice", Type: TypePerson})
	w.UpsertEntity(ctx, UpsertEntityInput{Name: "Bob", Type: TypePerson})
	w.UpsertRelation(ctx, UpsertRelationInput{Source: "Alice", Target: "Bob", Type: "knows"})

	if err := w.DeleteEntity(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}

	if _, err := r.Get(ctx, "Alice"); err == nil {
		t.Fatal("expected Alice to be gone")
	}

	bob, err := r.Get(ctx, "Bob")
	if err != nil {
		t.Fatalf("Get Bob: %v", err)
	}
	if len(bob.Relations) != 0 {
		t.Fatalf("expected cascade to remove relation, found %d", len(bob.Relations))
	}
}
