package kg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openclaw/kgraph/internal/storage"
)

// DefaultStaleDays is the threshold used when StaleInput.Days is zero.
const DefaultStaleDays = 14

// DefaultNeighborHops is the BFS depth used when NeighborsInput.Hops is zero.
const DefaultNeighborHops = 1

// Reader performs the read-only knowledge-graph operations: filtered
// query, single-entity lookup with relations, BFS neighbor traversal,
// staleness listing, and aggregate stats.
type Reader struct {
	pool *storage.Pool
}

// NewReader builds a Reader over pool.
func NewReader(pool *storage.Pool) *Reader {
	return &Reader{pool: pool}
}

func scanEntity(row interface {
	Scan(dest ...any) error
}) (Entity, error) {
	var e Entity
	var metadataJSON string
	if err := row.Scan(&e.ID, &e.Name, &e.Type, &metadataJSON, &e.Notes, &e.Confidence,
		&e.MentionCount, &e.FirstSeen, &e.LastSeen, &e.LastMentioned); err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(metadataJSON), &e.Metadata); err != nil {
		e.Metadata = Metadata{}
	}
	return e, nil
}

const entityColumns = `id, name, type, metadata, notes, confidence, mention_count, first_seen, last_seen, last_mentioned`

// entityColumnsAliased returns entityColumns with each column prefixed by
// alias, for use in joined queries (e.g. "e.id, e.name, ...").
func entityColumnsAliased(alias string) string {
	cols := strings.Split(entityColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// Query returns entities matching the given filters, ordered by
// last_mentioned descending, with Total reflecting the full match count
// before Limit/Offset are applied. An empty full-text match against a
// non-empty Text short-circuits to an empty result rather than falling
// back to an unfiltered scan.
func (r *Reader) Query(ctx context.Context, in QueryInput) (*QueryResult, error) {
	var result QueryResult
	err := r.pool.WithScope(ctx, func(s *storage.Scope) error {
		var conds []string
		var args []any

		if in.Type != "" {
			conds = append(conds, "e.type = ?")
			args = append(args, in.Type)
		}

		if strings.TrimSpace(in.Text) != "" {
			var ftsIDs []int64
			rows, err := s.Query(`SELECT rowid FROM kg_entities_fts WHERE kg_entities_fts MATCH ?`, in.Text)
			if err != nil {
				return fmt.Errorf("fts query: %w", err)
			}
			for rows.Next() {
				var id int64
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return err
				}
				ftsIDs = append(ftsIDs, id)
			}
			rows.Close()
			if len(ftsIDs) == 0 {
				result = QueryResult{Entities: []Entity{}, Total: 0}
				return nil
			}
			placeholders := make([]string, len(ftsIDs))
			for i, id := range ftsIDs {
				placeholders[i] = "?"
				args = append(args, id)
			}
			conds = append(conds, fmt.Sprintf("e.id IN (%s)", strings.Join(placeholders, ",")))
		}

		for key, val := range in.Metadata {
			normKey, err := normalizedMetadataKey(key)
			if err != nil {
				return err
			}
			conds = append(conds, fmt.Sprintf("json_extract(e.metadata, '$.%s') = ?", normKey))
			args = append(args, val)
		}

		where := ""
		if len(conds) > 0 {
			where = "WHERE " + strings.Join(conds, " AND ")
		}

		var total int
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM kg_entities e %s`, where)
		if err := s.QueryRow(countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("count entities: %w", err)
		}

		limit := in.Limit
		if limit <= 0 {
			limit = 50
		}
		listQuery := fmt.Sprintf(`SELECT %s FROM kg_entities e %s ORDER BY e.last_mentioned DESC LIMIT ? OFFSET ?`,
			entityColumnsAliased("e"), where)
		listArgs := append(append([]any{}, args...), limit, in.Offset)
		rows, err := s.Query(listQuery, listArgs...)
		if err != nil {
			return fmt.Errorf("query entities: %w", err)
		}
		defer rows.Close()

		entities := []Entity{}
		for rows.Next() {
			e, err := scanEntity(rows)
			if err != nil {
				return err
			}
			entities = append(entities, e)
		}
		result = QueryResult{Entities: entities, Total: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get fetches a single entity by id or name (case-insensitive), along
// with all relations touching it, decorated with direction and the
// other endpoint's id/name/type, ordered by strength descending.
func (r *Reader) Get(ctx context.Context, idOrName string) (*EntityWithRelations, error) {
	var result EntityWithRelations
	err := r.pool.WithScope(ctx, func(s *storage.Scope) error {
		var row *sql.Row
		if id, ok := parseID(idOrName); ok {
			row = s.QueryRow(fmt.Sprintf(`SELECT %s FROM kg_entities WHERE id = ?`, entityColumns), id)
		} else {
			row = s.QueryRow(fmt.Sprintf(`SELECT %s FROM kg_entities WHERE name = ? COLLATE NOCASE`, entityColumns), idOrName)
		}
		e, err := scanEntity(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %q", ErrEntityNotFound, idOrName)
		}
		if err != nil {
			return err
		}

		rels, err := relationsForEntity(s, e.ID)
		if err != nil {
			return err
		}
		e.RelCount = len(rels)
		result = EntityWithRelations{Entity: e, Relations: rels}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// relationsForEntity loads every relation touching entityID, decorated
// with direction and the other endpoint's details, ordered by strength
// descending.
func relationsForEntity(s *storage.Scope, entityID int64) ([]Relation, error) {
	rows, err := s.Query(`
		SELECT r.id, r.source_id, r.target_id, r.type, r.strength, r.metadata, r.bidirectional, r.last_confirmed,
		       oe.id, oe.name, oe.type
		FROM kg_relations r
		JOIN kg_entities oe ON oe.id = CASE WHEN r.source_id = ? THEN r.target_id ELSE r.source_id END
		WHERE r.source_id = ? OR r.target_id = ?
		ORDER BY r.strength DESC
	`, entityID, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var rels []Relation
	for rows.Next() {
		var rel Relation
		var metadataJSON string
		var bidir int
		if err := rows.Scan(&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type, &rel.Strength, &metadataJSON,
			&bidir, &rel.LastConfirmed, &rel.OtherID, &rel.OtherName, &rel.OtherType); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metadataJSON), &rel.Metadata); err != nil {
			rel.Metadata = Metadata{}
		}
		rel.Bidirectional = bidir != 0
		if rel.SourceID == entityID {
			rel.Direction = "outgoing"
		} else {
			rel.Direction = "incoming"
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// Neighbors performs a BFS graph walk of the given depth from a starting
// entity (by id or name), returning every entity reached and every
// relation traversed along the way. FilterType, when set, narrows only
// the final neighbor projection — it never prunes the BFS frontier
// itself, so a neighbor reached only through an excluded-type
// intermediate entity is still found.
func (r *Reader) Neighbors(ctx context.Context, in NeighborsInput) (*NeighborsResult, error) {
	hops := in.Hops
	if hops <= 0 {
		hops = DefaultNeighborHops
	}

	var result NeighborsResult
	err := r.pool.WithScope(ctx, func(s *storage.Scope) error {
		startID, err := resolveStart(s, in)
		if err != nil {
			return err
		}

		visited := map[int64]bool{startID: true}
		frontier := map[int64]bool{startID: true}
		relByID := map[int64]Relation{}

		for hop := 0; hop < hops && len(frontier) > 0; hop++ {
			ids := make([]int64, 0, len(frontier))
			for id := range frontier {
				ids = append(ids, id)
			}
			placeholders := make([]string, len(ids))
			args := make([]any, 0, len(ids)*2)
			for i, id := range ids {
				placeholders[i] = "?"
				args = append(args, id)
			}
			inClause := strings.Join(placeholders, ",")
			args = append(args, args...) // duplicate for source_id IN (...) OR target_id IN (...)

			query := fmt.Sprintf(`
				SELECT id, source_id, target_id, type, strength, metadata, bidirectional, last_confirmed
				FROM kg_relations
				WHERE source_id IN (%s) OR target_id IN (%s)
			`, inClause, inClause)
			rows, err := s.Query(query, args...)
			if err != nil {
				return fmt.Errorf("neighbors query: %w", err)
			}

			nextFrontier := map[int64]bool{}
			for rows.Next() {
				var rel Relation
				var metadataJSON string
				var bidir int
				if err := rows.Scan(&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type, &rel.Strength,
					&metadataJSON, &bidir, &rel.LastConfirmed); err != nil {
					rows.Close()
					return err
				}
				if err := json.Unmarshal([]byte(metadataJSON), &rel.Metadata); err != nil {
					rel.Metadata = Metadata{}
				}
				rel.Bidirectional = bidir != 0
				relByID[rel.ID] = rel

				for _, endpoint := range []int64{rel.SourceID, rel.TargetID} {
					if !visited[endpoint] {
						nextFrontier[endpoint] = true
					}
				}
			}
			rows.Close()

			for id := range nextFrontier {
				visited[id] = true
			}
			frontier = nextFrontier
		}
		delete(visited, startID)

		neighborIDs := make([]int64, 0, len(visited))
		for id := range visited {
			neighborIDs = append(neighborIDs, id)
		}

		entities := []Entity{}
		if len(neighborIDs) > 0 {
			placeholders := make([]string, len(neighborIDs))
			args := make([]any, 0, len(neighborIDs)+1)
			for i, id := range neighborIDs {
				placeholders[i] = "?"
				args = append(args, id)
			}
			query := fmt.Sprintf(`SELECT %s FROM kg_entities WHERE id IN (%s)`, entityColumns, strings.Join(placeholders, ","))
			if in.FilterType != "" {
				query += " AND type = ?"
				args = append(args, in.FilterType)
			}
			rows, err := s.Query(query, args...)
			if err != nil {
				return fmt.Errorf("fetch neighbor entities: %w", err)
			}
			defer rows.Close()
			for rows.Next() {
				e, err := scanEntity(rows)
				if err != nil {
					return err
				}
				entities = append(entities, e)
			}
		}

		relations := make([]Relation, 0, len(relByID))
		for _, rel := range relByID {
			relations = append(relations, rel)
		}

		result = NeighborsResult{Neighbors: entities, Relations: relations}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func resolveStart(s *storage.Scope, in NeighborsInput) (int64, error) {
	if in.EntityID != 0 {
		return in.EntityID, nil
	}
	var id int64
	err := s.QueryRow(`SELECT id FROM kg_entities WHERE name = ? COLLATE NOCASE`, in.Name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrEntityNotFound, in.Name)
	}
	return id, err
}

// Stale lists entities not mentioned within the given window, ordered
// from most to least stale.
func (r *Reader) Stale(ctx context.Context, in StaleInput) ([]Entity, error) {
	days := in.Days
	if days <= 0 {
		days = DefaultStaleDays
	}

	var entities []Entity
	err := r.pool.WithScope(ctx, func(s *storage.Scope) error {
		query := fmt.Sprintf(`SELECT %s FROM kg_entities WHERE last_mentioned < datetime('now', ?)`, entityColumns)
		args := []any{fmt.Sprintf("-%d days", days)}
		if in.Type != "" {
			query += " AND type = ?"
			args = append(args, in.Type)
		}
		query += " ORDER BY last_mentioned ASC"

		rows, err := s.Query(query, args...)
		if err != nil {
			return fmt.Errorf("stale query: %w", err)
		}
		defer rows.Close()

		entities = []Entity{}
		for rows.Next() {
			e, err := scanEntity(rows)
			if err != nil {
				return err
			}
			var relCount int
			if err := s.QueryRow(`SELECT COUNT(*) FROM kg_relations WHERE source_id = ? OR target_id = ?`, e.ID, e.ID).Scan(&relCount); err != nil {
				return err
			}
			e.RelCount = relCount
			entities = append(entities, e)
		}
		return nil
	})
	return entities, err
}

// Stats computes a type histogram, the ten most-connected entities, the
// ten most-stale entities, and overall totals.
func (r *Reader) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	stats.ByType = map[EntityType]int{}

	err := r.pool.WithScope(ctx, func(s *storage.Scope) error {
		if err := s.QueryRow(`SELECT COUNT(*) FROM kg_entities`).Scan(&stats.TotalEntities); err != nil {
			return err
		}
		if err := s.QueryRow(`SELECT COUNT(*) FROM kg_relations`).Scan(&stats.TotalRelations); err != nil {
			return err
		}

		rows, err := s.Query(`SELECT type, COUNT(*) AS cnt FROM kg_entities GROUP BY type ORDER BY cnt DESC`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var t EntityType
			var cnt int
			if err := rows.Scan(&t, &cnt); err != nil {
				rows.Close()
				return err
			}
			stats.ByType[t] = cnt
		}
		rows.Close()

		rows, err = s.Query(`
			SELECT e.id, e.name, e.type, (SELECT COUNT(*) FROM kg_relations r WHERE r.source_id = e.id OR r.target_id = e.id) AS rc
			FROM kg_entities e
			ORDER BY rc DESC
			LIMIT 10
		`)
		if err != nil {
			return err
		}
		stats.MostConnected = []ConnectionCount{}
		for rows.Next() {
			var c ConnectionCount
			if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.RelCount); err != nil {
				rows.Close()
				return err
			}
			stats.MostConnected = append(stats.MostConnected, c)
		}
		rows.Close()

		rows, err = s.Query(fmt.Sprintf(`SELECT %s FROM kg_entities ORDER BY last_mentioned ASC LIMIT 10`, entityColumns))
		if err != nil {
			return err
		}
		defer rows.Close()
		stats.MostStale = []Entity{}
		for rows.Next() {
			e, err := scanEntity(rows)
			if err != nil {
				return err
			}
			stats.MostStale = append(stats.MostStale, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func parseID(s string) (int64, bool) {
	var id int64
	n, err := fmt.Sscanf(s, "%d", &id)
	if err != nil || n != 1 {
		return 0, false
	}
	// Reject values with trailing non-digit garbage that Sscanf silently
	// accepted (e.g. "12abc" stops at the digits).
	if fmt.Sprintf("%d", id) != strings.TrimSpace(s) {
		return 0, false
	}
	return id, true
}
