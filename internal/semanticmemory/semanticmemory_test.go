package semanticmemory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openclaw/kgraph/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	pool, err := storage.NewPool(path)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { pool.CloseAll() })

	ctx := context.Background()
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	vectors := NewVectorIndex(ctx, pool)
	return NewStore(pool, NewHashEmbedder(DefaultEmbeddingDim), vectors)
}

func TestStoreAndGetRecent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	entry, err := st.Store(ctx, StoreInput{Text: "met Alice at the conference", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if len(entry.ID) != 16 {
		t.Fatalf("expected 16-char content id, got %q", entry.ID)
	}

	recent, err := st.GetRecent(ctx, 5, "")
	if err != nil {
		t.Fatalf("GetRecent: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != entry.ID {
		t.Fatalf("expected stored entry in recent list, got %+v", recent)
	}
}

func TestHashEmbedderIsDeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(384)
	v1 := e.Embed("the quick brown fox")
	v2 := e.Embed("the quick brown fox")
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("embedding not deterministic at index %d: %v vs %v", i, v1[i], v2[i])
		}
	}
	var magnitude float64
	for _, f := range v1 {
		magnitude += float64(f) * float64(f)
	}
	if magnitude < 0.99 || magnitude > 1.01 {
		t.Fatalf("expected L2-normalized vector (magnitude ~1), got %v", magnitude)
	}
}

func TestSearchReturnsRelevantMemory(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	st.Store(ctx, StoreInput{Text: "alice loves hiking in the mountains"})
	st.Store(ctx, StoreInput{Text: "bob prefers reading science fiction"})

	hits, err := st.Search(ctx, SearchInput{Query: "hiking mountains", K: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit for overlapping keywords")
	}
	found := false
	for _, h := range hits {
		if h.Text == "alice loves hiking in the mountains" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the hiking memory among hits, got %+v", hits)
	}
}

func TestSearchUsesKeywordPathWhenVectorIndexUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	pool, err := storage.NewPool(path)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { pool.CloseAll() })
	ctx := context.Background()
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	st := NewStore(pool, NewHashEmbedder(DefaultEmbeddingDim), nil)

	st.Store(ctx, StoreInput{Text: "alice loves hiking in the mountains"})

	hits, err := st.Search(ctx, SearchInput{Query: "hiking mountains", K: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].SearchMethod != "keyword" {
		t.Fatalf("expected one keyword-method hit, got %+v", hits)
	}
}

func TestSearchFiltersByMemoryType(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	st.Store(ctx, StoreInput{Text: "project deadline friday", MemoryType: "task"})
	st.Store(ctx, StoreInput{Text: "project deadline discussion", MemoryType: "conversation"})

	hits, err := st.Search(ctx, SearchInput{Query: "project deadline", K: 5, MemoryType: "task"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.MemoryType != "task" {
			t.Fatalf("expected only task-type hits, got %s", h.MemoryType)
		}
	}
}

func TestDeleteOldRemovesAgedMemories(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	st.Store(ctx, StoreInput{Text: "fresh memory"})

	deleted, err := st.DeleteOld(ctx, 90)
	if err != nil {
		t.Fatalf("DeleteOld: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deleted for a fresh memory, got %d", deleted)
	}
}

func TestStatsReportsVectorAvailability(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	st.Store(ctx, StoreInput{Text: "one", MemoryType: "note"})
	st.Store(ctx, StoreInput{Text: "two", MemoryType: "note"})

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 {
		t.Fatalf("expected 2 total, got %d", stats.Total)
	}
	if !stats.VectorSearchAvailable {
		t.Fatal("expected vector search to be available against a fresh in-process table")
	}
}
