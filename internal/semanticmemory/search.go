package semanticmemory

import (
	"context"
	"sort"
	"strings"

	"github.com/openclaw/kgraph/internal/storage"
)

// Search retrieves the k most relevant memories for query. It tries the
// vector index first; if that yields no results (unavailable, or no
// stored vectors yet overlap the filters), it falls back to an FTS
// keyword search. This mirrors semantic_memory.py's search(): vector
// path first, keyword path only engaged when the vector path comes back
// empty, both overfetching k*2 candidates before post-hoc filtering.
func (st *Store) Search(ctx context.Context, in SearchInput) ([]SearchHit, error) {
	k := in.K
	if k <= 0 {
		k = 5
	}

	hits, err := st.vectorSearch(ctx, in, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		hits, err = st.keywordSearch(ctx, in, k)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (st *Store) vectorSearch(ctx context.Context, in SearchInput, k int) ([]SearchHit, error) {
	if st.vectors == nil || !st.vectors.Available() {
		return nil, nil
	}
	query := st.embedder.Embed(in.Query)
	matches, err := st.vectors.Search(ctx, query, k*2)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	byID := make(map[string]float64, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		byID[m.MemoryID] = 1.0 / (1.0 + m.Distance)
		ids = append(ids, m.MemoryID)
	}

	entries, err := st.fetchByIDs(ctx, ids, in)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(entries))
	for _, e := range entries {
		score := byID[e.ID]
		if score < in.MinScore {
			continue
		}
		hits = append(hits, SearchHit{MemoryEntry: e, Score: score, SearchMethod: "vector"})
	}
	return hits, nil
}

func (st *Store) keywordSearch(ctx context.Context, in SearchInput, k int) ([]SearchHit, error) {
	var rows []MemoryEntry
	err := st.pool.WithScope(ctx, func(s *storage.Scope) error {
		query := `
			SELECT m.id, m.text, m.metadata, m.created_at, m.session_id, m.memory_type
			FROM memories m
			JOIN memories_fts f ON f.rowid = m.rowid
			WHERE memories_fts MATCH ?
			ORDER BY rank
			LIMIT ?
		`
		r, err := s.Query(query, in.Query, k*2)
		if err != nil {
			return err
		}
		defer r.Close()
		for r.Next() {
			e, err := scanMemoryEntry(r)
			if err != nil {
				return err
			}
			rows = append(rows, e)
		}
		return nil
	})
	if err != nil {
		// An FTS MATCH with no indexable query terms errors rather than
		// returning zero rows; treat that the same as "no matches".
		return nil, nil
	}

	queryWords := tokenize(in.Query)
	hits := make([]SearchHit, 0, len(rows))
	for _, e := range rows {
		if in.MemoryType != "" && e.MemoryType != in.MemoryType {
			continue
		}
		if in.SessionID != "" && e.SessionID != in.SessionID {
			continue
		}
		score := keywordOverlapScore(queryWords, tokenize(e.Text))
		if score < in.MinScore {
			continue
		}
		hits = append(hits, SearchHit{MemoryEntry: e, Score: score, SearchMethod: "keyword"})
	}
	return hits, nil
}

// fetchByIDs loads entries for the given ids, applying the type/session
// filters, preserving no particular order (callers re-sort by score).
func (st *Store) fetchByIDs(ctx context.Context, ids []string, in SearchInput) ([]MemoryEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entries []MemoryEntry
	err := st.pool.WithScope(ctx, func(s *storage.Scope) error {
		placeholders := make([]string, len(ids))
		args := make([]any, 0, len(ids)+2)
		for i, id := range ids {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query := `SELECT id, text, metadata, created_at, session_id, memory_type FROM memories WHERE id IN (` +
			strings.Join(placeholders, ",") + `)`
		if in.MemoryType != "" {
			query += ` AND memory_type = ?`
			args = append(args, in.MemoryType)
		}
		if in.SessionID != "" {
			query += ` AND session_id = ?`
			args = append(args, in.SessionID)
		}
		rows, err := s.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
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

func tokenize(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// keywordOverlapScore is |query words ∩ text words| / |query words|,
// ported directly from semantic_memory.py's keyword fallback scoring.
func keywordOverlapScore(query, text map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	overlap := 0
	for w := range query {
		if text[w] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(query))
}
