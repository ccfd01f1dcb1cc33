package kg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openclaw/kgraph/internal/clock"
	"github.com/openclaw/kgraph/internal/storage"
)

// ErrEntityNotFound is returned when a relation endpoint cannot be
// resolved to an existing entity, by id or by name.
var ErrEntityNotFound = errors.New("entity not found")

// ErrInvalidType is returned when an entity type is not one of the
// recognized values.
var ErrInvalidType = errors.New("invalid entity type")

// Writer performs the mutating knowledge-graph operations: entity and
// relation upsert, and entity deletion. Every write appends one
// changelog row in the same transaction.
type Writer struct {
	pool *storage.Pool
}

// NewWriter builds a Writer over pool.
func NewWriter(pool *storage.Pool) *Writer {
	return &Writer{pool: pool}
}

// EnsureSchema creates the kg schema if missing. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, pool *storage.Pool) error {
	return pool.WithScope(ctx, func(s *storage.Scope) error {
		_, err := s.Exec(CoreSchema)
		return err
	})
}

func marshalMetadata(m Metadata) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

// UpsertEntity creates a new entity or, when one already exists with the
// same name (case-insensitive) and type, merges into it: metadata and
// notes are replaced only when a non-empty value is supplied, confidence
// takes the max of old and new, and mention_count increments.
func (w *Writer) UpsertEntity(ctx context.Context, in UpsertEntityInput) (*UpsertEntityResult, error) {
	if !ValidEntityTypes[in.Type] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	confidence := DefaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	metadataJSON, err := marshalMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}
	now := clock.Format(clock.Now())

	var result UpsertEntityResult
	err = w.pool.WithScope(ctx, func(s *storage.Scope) error {
		res, err := s.Exec(`
			UPDATE kg_entities
			SET metadata = CASE WHEN ? != '{}' THEN ? ELSE metadata END,
			    notes = CASE WHEN ? != '' THEN ? ELSE notes END,
			    confidence = MAX(confidence, ?),
			    mention_count = mention_count + 1,
			    last_seen = ?,
			    last_mentioned = ?
			WHERE name = ? COLLATE NOCASE AND type = ?
		`, metadataJSON, metadataJSON, in.Notes, in.Notes, confidence, now, now, in.Name, in.Type)
		if err != nil {
			return fmt.Errorf("update entity: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}

		var id int64
		var action string
		if affected > 0 {
			action = "updated"
			if err := s.QueryRow(`SELECT id FROM kg_entities WHERE name = ? COLLATE NOCASE AND type = ?`,
				in.Name, in.Type).Scan(&id); err != nil {
				return fmt.Errorf("fetch updated entity id: %w", err)
			}
		} else {
			action = "created"
			res, err := s.Exec(`
				INSERT INTO kg_entities (name, type, metadata, notes, confidence, mention_count, first_seen, last_seen, last_mentioned)
				VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)
			`, in.Name, in.Type, metadataJSON, in.Notes, confidence, now, now, now)
			if err != nil {
				return fmt.Errorf("insert entity: %w", err)
			}
			id, err = res.LastInsertId()
			if err != nil {
				return err
			}
		}

		if err := appendChangelog(s, now, "entity_"+action, &id, nil,
			fmt.Sprintf("%s %q (%s)", action, in.Name, in.Type)); err != nil {
			return err
		}

		result = UpsertEntityResult{ID: id, Action: action, Name: in.Name, Type: in.Type}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// resolveEntity resolves a Source/Target value to an entity id: an int64,
// int, float64 (a decoded JSON number) or numeric string is used directly
// (existence checked by the caller's FK), any other string is looked up
// as a name, case-insensitively.
func resolveEntity(s *storage.Scope, ref any) (int64, string, error) {
	switch v := ref.(type) {
	case int64:
		return v, "", nil
	case int:
		return int64(v), "", nil
	case float64:
		return int64(v), "", nil
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id, "", nil
		}
		var id int64
		var name string
		err := s.QueryRow(`SELECT id, name FROM kg_entities WHERE name = ? COLLATE NOCASE`, v).Scan(&id, &name)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, v, fmt.Errorf("%w: %q", ErrEntityNotFound, v)
		}
		if err != nil {
			return 0, v, err
		}
		return id, name, nil
	default:
		return 0, "", fmt.Errorf("%w: unsupported reference type %T", ErrEntityNotFound, ref)
	}
}

// UpsertRelation creates or strengthens a directed edge between two
// entities, resolved by id or name. On conflict (same source, target,
// and type), strength takes the max of old and new, metadata is
// replaced only when a non-empty value is supplied, and bidirectional
// and last_confirmed are always overwritten with the new values.
func (w *Writer) UpsertRelation(ctx context.Context, in UpsertRelationInput) (*UpsertRelationResult, error) {
	strength := DefaultStrength
	if in.Strength != nil {
		strength = *in.Strength
	}
	metadataJSON, err := marshalMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}
	now := clock.Format(clock.Now())

	var result UpsertRelationResult
	err = w.pool.WithScope(ctx, func(s *storage.Scope) error {
		sourceID, _, err := resolveEntity(s, in.Source)
		if err != nil {
			return err
		}
		targetID, _, err := resolveEntity(s, in.Target)
		if err != nil {
			return err
		}

		bidir := 0
		if in.Bidirectional {
			bidir = 1
		}

		_, err = s.Exec(`
			INSERT INTO kg_relations (source_id, target_id, type, strength, metadata, bidirectional, last_confirmed)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_id, target_id, type) DO UPDATE SET
			    strength = MAX(kg_relations.strength, excluded.strength),
			    metadata = CASE WHEN excluded.metadata != '{}' THEN excluded.metadata ELSE kg_relations.metadata END,
			    bidirectional = excluded.bidirectional,
			    last_confirmed = excluded.last_confirmed
		`, sourceID, targetID, in.Type, strength, metadataJSON, bidir, now)
		if err != nil {
			return fmt.Errorf("upsert relation: %w", err)
		}

		var id int64
		if err := s.QueryRow(`SELECT id FROM kg_relations WHERE source_id = ? AND target_id = ? AND type = ?`,
			sourceID, targetID, in.Type).Scan(&id); err != nil {
			return fmt.Errorf("fetch relation id: %w", err)
		}

		if err := appendChangelog(s, now, "relation_upsert", nil, &id,
			fmt.Sprintf("%d -> %d (%s)", sourceID, targetID, in.Type)); err != nil {
			return err
		}

		result = UpsertRelationResult{ID: id, SourceID: sourceID, TargetID: targetID, Type: in.Type}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteEntity removes an entity and, via foreign-key cascade, all
// relations touching it.
func (w *Writer) DeleteEntity(ctx context.Context, entityID int64) error {
	now := clock.Format(clock.Now())
	return w.pool.WithScope(ctx, func(s *storage.Scope) error {
		var name string
		if err := s.QueryRow(`SELECT name FROM kg_entities WHERE id = ?`, entityID).Scan(&name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: id %d", ErrEntityNotFound, entityID)
			}
			return err
		}
		if _, err := s.Exec(`DELETE FROM kg_entities WHERE id = ?`, entityID); err != nil {
			return fmt.Errorf("delete entity: %w", err)
		}
		return appendChangelog(s, now, "entity_deleted", &entityID, nil, name)
	})
}

func appendChangelog(s *storage.Scope, ts, action string, entityID, relationID *int64, detail string) error {
	_, err := s.Exec(`INSERT INTO kg_changelog (ts, action, entity_id, relation_id, detail) VALUES (?, ?, ?, ?, ?)`,
		ts, action, entityID, relationID, detail)
	if err != nil {
		return fmt.Errorf("append changelog: %w", err)
	}
	return nil
}

// normalizedMetadataKey rejects metadata filter keys that could be used
// to reach into prototype-chain-like reserved names or contain anything
// outside the conservative [A-Za-z0-9_.-] charset accepted by
// json_extract path segments.
func normalizedMetadataKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty metadata key")
	}
	reserved := map[string]bool{"__proto__": true, "constructor": true, "prototype": true}
	if reserved[key] || strings.HasPrefix(key, "__") {
		return "", fmt.Errorf("reserved metadata key %q", key)
	}
	for _, r := range key {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '.' || r == '-'
		if !ok {
			return "", fmt.Errorf("invalid metadata key %q", key)
		}
	}
	return key, nil
}
