package semanticmemory

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/openclaw/kgraph/internal/clock"
	"github.com/openclaw/kgraph/internal/storage"
)

// Store is the content-addressed semantic memory service: it embeds
// text with a deterministic fallback embedder, persists it alongside an
// FTS shadow index, and feeds a best-effort vector index. Grounded
// directly on semantic_memory.py's SemanticMemory class.
type Store struct {
	pool     *storage.Pool
	embedder Embedder
	vectors  VectorIndex
}

// NewStore builds a Store. vectors may report Available()==false; Store
// and Search both degrade gracefully in that case.
func NewStore(pool *storage.Pool, embedder Embedder, vectors VectorIndex) *Store {
	if embedder == nil {
		embedder = NewHashEmbedder(DefaultEmbeddingDim)
	}
	return &Store{pool: pool, embedder: embedder, vectors: vectors}
}

// EnsureSchema creates the semantic memory schema if missing.
func EnsureSchema(ctx context.Context, pool *storage.Pool) error {
	return pool.WithScope(ctx, func(s *storage.Scope) error {
		_, err := s.Exec(CoreSchema)
		return err
	})
}

// contentID derives a stable 16-character id from the text and the
// moment it was stored, the same scheme semantic_memory.py's store()
// uses: sha256(f"{text}:{now}").hexdigest()[:16].
func contentID(text, createdAt string) string {
	sum := sha256.Sum256([]byte(text + ":" + createdAt))
	return fmt.Sprintf("%x", sum)[:16]
}

// Store embeds and persists a memory, returning the stored entry.
func (st *Store) Store(ctx context.Context, in StoreInput) (*MemoryEntry, error) {
	memoryType := in.MemoryType
	if memoryType == "" {
		memoryType = "conversation"
	}
	now := clock.Format(clock.Now())
	id := contentID(in.Text, now)

	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	vec := st.embedder.Embed(in.Text)
	embeddingJSON, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}

	entry := MemoryEntry{ID: id, Text: in.Text, Metadata: metadata, CreatedAt: now, SessionID: in.SessionID, MemoryType: memoryType}

	err = st.pool.WithScope(ctx, func(s *storage.Scope) error {
		var sessionID any
		if in.SessionID != "" {
			sessionID = in.SessionID
		}
		_, err := s.Exec(`
			INSERT INTO memories (id, text, embedding, metadata, created_at, session_id, memory_type)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, in.Text, string(embeddingJSON), string(metadataJSON), now, sessionID, memoryType)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store memory: %w", err)
	}

	if st.vectors != nil {
		if err := st.vectors.Upsert(ctx, id, vec); err != nil {
			log.Warn("vector index upsert failed, memory is still retrievable via keyword search", "id", id, "error", err)
		}
	}

	return &entry, nil
}

// GetRecent returns the n most recently stored memories, optionally
// filtered by memory type.
func (st *Store) GetRecent(ctx context.Context, n int, memoryType string) ([]MemoryEntry, error) {
	if n <= 0 {
		n = 10
	}
	var entries []MemoryEntry
	err := st.pool.WithScope(ctx, func(s *storage.Scope) error {
		query := `SELECT id, text, metadata, created_at, session_id, memory_type FROM memories`
		var args []any
		if memoryType != "" {
			query += ` WHERE memory_type = ?`
			args = append(args, memoryType)
		}
		query += ` ORDER BY created_at DESC LIMIT ?`
		args = append(args, n)

		rows, err := s.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		entries = []MemoryEntry{}
		for rows.Next() {
			e, err := scanMemoryEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// GetBySession returns every memory stored under the given session id,
// oldest first.
func (st *Store) GetBySession(ctx context.Context, sessionID string) ([]MemoryEntry, error) {
	var entries []MemoryEntry
	err := st.pool.WithScope(ctx, func(s *storage.Scope) error {
		rows, err := s.Query(`
			SELECT id, text, metadata, created_at, session_id, memory_type
			FROM memories WHERE session_id = ? ORDER BY created_at ASC
		`, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		entries = []MemoryEntry{}
		for rows.Next() {
			e, err := scanMemoryEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// DeleteOld removes memories older than the given number of days and
// returns the count deleted.
func (st *Store) DeleteOld(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = 90
	}
	var deleted int64
	err := st.pool.WithScope(ctx, func(s *storage.Scope) error {
		res, err := s.Exec(`DELETE FROM memories WHERE created_at < datetime('now', ?)`, fmt.Sprintf("-%d days", days))
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return int(deleted), err
}

// Stats summarizes the store's contents.
func (st *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByType: map[string]int{}}
	if st.vectors != nil {
		stats.VectorSearchAvailable = st.vectors.Available()
	}
	err := st.pool.WithScope(ctx, func(s *storage.Scope) error {
		if err := s.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&stats.Total); err != nil {
			return err
		}
		if err := s.QueryRow(`SELECT COUNT(DISTINCT session_id) FROM memories WHERE session_id IS NOT NULL`).Scan(&stats.UniqueSessions); err != nil {
			return err
		}

		rows, err := s.Query(`SELECT memory_type, COUNT(*) FROM memories GROUP BY memory_type`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var t string
			var cnt int
			if err := rows.Scan(&t, &cnt); err != nil {
				rows.Close()
				return err
			}
			stats.ByType[t] = cnt
		}
		rows.Close()

		if stats.Total > 0 {
			if err := s.QueryRow(`SELECT MIN(created_at) FROM memories`).Scan(&stats.Oldest); err != nil {
				return err
			}
			if err := s.QueryRow(`SELECT MAX(created_at) FROM memories`).Scan(&stats.Newest); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func scanMemoryEntry(rows interface{ Scan(dest ...any) error }) (MemoryEntry, error) {
	var e MemoryEntry
	var metadataJSON string
	var sessionID *string
	if err := rows.Scan(&e.ID, &e.Text, &metadataJSON, &e.CreatedAt, &sessionID, &e.MemoryType); err != nil {
		return e, err
	}
	if sessionID != nil {
		e.SessionID = *sessionID
	}
	if err := json.Unmarshal([]byte(metadataJSON), &e.Metadata); err != nil {
		e.Metadata = map[string]any{}
	}
	return e, nil
}
