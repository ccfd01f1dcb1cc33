package semanticmemory

import (
	"context"
	"sort"

	"github.com/openclaw/kgraph/internal/storage"
)

// VectorMatch is one nearest-neighbor hit from a vector index search.
type VectorMatch struct {
	MemoryID string
	Distance float64
}

// VectorIndex is the nearest-neighbor search capability over stored
// embeddings. Callers must check Available() before relying on Search
// results being populated; an unavailable index returns an empty result
// rather than an error, so callers fall back to keyword search instead
// of failing.
//
// No dedicated vector-search engine (sqlite-vec, an ANN library, a
// Qdrant client with a real driver) is available to this module, so this
// is a brute-force implementation: distances are computed in Go over
// every stored vector. It exists to preserve the exact shape the
// original prototype's SQLITE_VEC_AVAILABLE probe established — probe
// once at construction, expose a boolean, and let every caller degrade
// gracefully — while the teacher's own QdrantClient.IsAvailable /
// ai.Manager capability-gating is the idiomatic precedent this follows
// in Go.
type VectorIndex interface {
	Available() bool
	Upsert(ctx context.Context, memoryID string, vector []float32) error
	Search(ctx context.Context, query []float32, k int) ([]VectorMatch, error)
}

// sqliteIndex is the brute-force VectorIndex backed by memory_vectors.
type sqliteIndex struct {
	pool      *storage.Pool
	available bool
}

// NewVectorIndex probes the memory_vectors table and returns a
// VectorIndex. Available() reports whether the table could be reached;
// it is false only if the schema failed to apply, mirroring the
// prototype's try/except around the vec0 virtual table creation.
func NewVectorIndex(ctx context.Context, pool *storage.Pool) *sqliteIndex {
	idx := &sqliteIndex{pool: pool}
	err := pool.WithScope(ctx, func(s *storage.Scope) error {
		_, err := s.Query(`SELECT COUNT(*) FROM memory_vectors`)
		return err
	})
	idx.available = err == nil
	if !idx.available {
		log.Warn("vector index unavailable, semantic search will use keyword fallback only")
	}
	return idx
}

func (idx *sqliteIndex) Available() bool { return idx.available }

func (idx *sqliteIndex) Upsert(ctx context.Context, memoryID string, vector []float32) error {
	if !idx.available {
		return nil
	}
	return idx.pool.WithScope(ctx, func(s *storage.Scope) error {
		_, err := s.Exec(`
			INSERT INTO memory_vectors (memory_id, vector) VALUES (?, ?)
			ON CONFLICT(memory_id) DO UPDATE SET vector = excluded.vector
		`, memoryID, encodeVector(vector))
		return err
	})
}

// Search scans every stored vector and returns the k closest by L2
// distance, ascending. Brute force is acceptable at the scale this
// store targets (a personal knowledge base, not a web-scale corpus).
func (idx *sqliteIndex) Search(ctx context.Context, query []float32, k int) ([]VectorMatch, error) {
	if !idx.available {
		return nil, nil
	}
	var matches []VectorMatch
	err := idx.pool.WithScope(ctx, func(s *storage.Scope) error {
		rows, err := s.Query(`SELECT memory_id, vector FROM memory_vectors`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			var blob []byte
			if err := rows.Scan(&id, &blob); err != nil {
				return err
			}
			matches = append(matches, VectorMatch{MemoryID: id, Distance: l2Distance(query, decodeVector(blob))})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
