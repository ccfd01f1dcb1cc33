// Package kg implements the knowledge graph storage engine: schema,
// upsert semantics, full-text search integration, BFS traversal, and the
// append-only changelog. It is grounded on the Python prototype
// kg-bridge.py / kg_lib.py this module's spec was distilled from.
package kg

import "github.com/openclaw/kgraph/internal/logging"

var log = logging.GetLogger("kg")

// EntityType enumerates the allowed kg_entities.type values.
type EntityType string

const (
	TypePerson  EntityType = "person"
	TypeOrg     EntityType = "org"
	TypeProject EntityType = "project"
	TypePlace   EntityType = "place"
	TypeEvent   EntityType = "event"
	TypeTopic   EntityType = "topic"
	TypeSkill   EntityType = "skill"
)

// ValidEntityTypes is the allowed set for Entity.Type.
var ValidEntityTypes = map[EntityType]bool{
	TypePerson:  true,
	TypeOrg:     true,
	TypeProject: true,
	TypePlace:   true,
	TypeEvent:   true,
	TypeTopic:   true,
	TypeSkill:   true,
}

// Metadata is the open, string-keyed recursive JSON value attached to
// entities and relations. It is persisted as a text blob and queried
// through SQLite's json_extract, never modeled as a fixed Go struct
// because its shape is intentionally open per caller.
type Metadata map[string]any

// Entity is a typed, named node in the graph.
type Entity struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Type          EntityType `json:"type"`
	Metadata      Metadata   `json:"metadata"`
	Notes         string     `json:"notes"`
	Confidence    float64    `json:"confidence"`
	MentionCount  int        `json:"mention_count"`
	FirstSeen     string     `json:"first_seen"`
	LastSeen      string     `json:"last_seen"`
	LastMentioned string     `json:"last_mentioned"`
	// RelCount is populated by queries that decorate entities with their
	// relation count (stale listing, stats leaderboards); zero otherwise.
	RelCount int `json:"rel_count,omitempty"`
}

// EntityWithRelations is the response shape for Reader.Get: the entity
// plus every relation touching it, ordered by strength descending.
type EntityWithRelations struct {
	Entity    Entity     `json:"entity"`
	Relations []Relation `json:"relations"`
}

// Relation is a directed, typed edge between two entities.
type Relation struct {
	ID            int64    `json:"id"`
	SourceID      int64    `json:"source_id"`
	TargetID      int64    `json:"target_id"`
	Type          string   `json:"type"`
	Strength      float64  `json:"strength"`
	Metadata      Metadata `json:"metadata"`
	Bidirectional bool     `json:"bidirectional"`
	LastConfirmed string   `json:"last_confirmed"`

	// Decoration populated by Get/Neighbors relative to a queried entity.
	Direction string `json:"direction,omitempty"` // "outgoing" | "incoming"
	OtherID   int64  `json:"other_id,omitempty"`
	OtherName string `json:"other_name,omitempty"`
	OtherType string `json:"other_type,omitempty"`
}

// ChangelogEntry is one append-only audit record.
type ChangelogEntry struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"ts"`
	Action     string `json:"action"`
	EntityID   *int64 `json:"entity_id,omitempty"`
	RelationID *int64 `json:"relation_id,omitempty"`
	Detail     string `json:"detail"`
}

// UpsertEntityInput is the request shape for UpsertEntity.
type UpsertEntityInput struct {
	Name       string
	Type       EntityType
	Metadata   Metadata
	Notes      string
	Confidence *float64 // nil means "unset"; DefaultConfidence is used
}

// DefaultConfidence is applied when UpsertEntityInput.Confidence is nil.
const DefaultConfidence = 0.8

// UpsertEntityResult is the response shape for UpsertEntity.
type UpsertEntityResult struct {
	ID     int64
	Action string // "created" | "updated"
	Name   string
	Type   EntityType
}

// UpsertRelationInput is the request shape for UpsertRelation. Source and
// Target each accept either a numeric entity id or an entity name
// (resolved case-insensitively).
type UpsertRelationInput struct {
	Source        any
	Target        any
	Type          string
	Strength      *float64 // nil means "unset"; DefaultStrength is used
	Metadata      Metadata
	Bidirectional bool
}

// DefaultStrength is applied when UpsertRelationInput.Strength is nil.
const DefaultStrength = 0.5

// UpsertRelationResult is the response shape for UpsertRelation.
type UpsertRelationResult struct {
	ID       int64
	SourceID int64
	TargetID int64
	Type     string
}

// QueryInput is the request shape for Query.
type QueryInput struct {
	Type     EntityType
	Text     string
	Metadata map[string]any
	Limit    int
	Offset   int
}

// QueryResult is the response shape for Query.
type QueryResult struct {
	Entities []Entity
	Total    int
}

// StaleInput is the request shape for Stale.
type StaleInput struct {
	Days int // default 14
	Type EntityType
}

// NeighborsInput is the request shape for Neighbors.
type NeighborsInput struct {
	EntityID   int64
	Name       string
	Hops       int // default 1
	FilterType EntityType
}

// NeighborsResult is the response shape for Neighbors.
type NeighborsResult struct {
	Neighbors []Entity
	Relations []Relation
}

// Stats is the response shape for the Stats reader operation.
type Stats struct {
	TotalEntities  int
	TotalRelations int
	ByType         map[EntityType]int
	MostConnected  []ConnectionCount
	MostStale      []Entity
}

// ConnectionCount decorates an entity with its relation count for the
// most-connected leaderboard.
type ConnectionCount struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Type     EntityType `json:"type"`
	RelCount int        `json:"rel_count"`
}
