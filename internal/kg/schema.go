package kg

// SchemaVersion identifies the current kg schema shape.
const SchemaVersion = 1

// CoreSchema creates the entities, relations, and changelog tables plus
// their supporting indexes and triggers. It is ported near-verbatim from
// the SCHEMA_SQL constant in the Python bridge this package replaces,
// down to the retention trigger and the COLLATE NOCASE uniqueness index.
const CoreSchema = `
CREATE TABLE IF NOT EXISTS kg_entities (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    name            TEXT NOT NULL,
    type            TEXT NOT NULL CHECK (type IN ('person','org','project','place','event','topic','skill')),
    metadata        TEXT NOT NULL DEFAULT '{}',
    notes           TEXT NOT NULL DEFAULT '',
    confidence      REAL NOT NULL DEFAULT 0.8 CHECK (confidence >= 0 AND confidence <= 1),
    mention_count   INTEGER NOT NULL DEFAULT 1,
    first_seen      TEXT NOT NULL,
    last_seen       TEXT NOT NULL,
    last_mentioned  TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_kg_entities_name_type
    ON kg_entities (name COLLATE NOCASE, type);

CREATE INDEX IF NOT EXISTS idx_kg_entities_type ON kg_entities (type);
CREATE INDEX IF NOT EXISTS idx_kg_entities_last_mentioned ON kg_entities (last_mentioned);

CREATE VIRTUAL TABLE IF NOT EXISTS kg_entities_fts USING fts5(
    name, notes, content='kg_entities', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS kg_entities_ai AFTER INSERT ON kg_entities BEGIN
    INSERT INTO kg_entities_fts(rowid, name, notes) VALUES (new.id, new.name, new.notes);
END;

CREATE TRIGGER IF NOT EXISTS kg_entities_ad AFTER DELETE ON kg_entities BEGIN
    INSERT INTO kg_entities_fts(kg_entities_fts, rowid, name, notes) VALUES ('delete', old.id, old.name, old.notes);
END;

CREATE TRIGGER IF NOT EXISTS kg_entities_au AFTER UPDATE ON kg_entities BEGIN
    INSERT INTO kg_entities_fts(kg_entities_fts, rowid, name, notes) VALUES ('delete', old.id, old.name, old.notes);
    INSERT INTO kg_entities_fts(rowid, name, notes) VALUES (new.id, new.name, new.notes);
END;

CREATE TABLE IF NOT EXISTS kg_relations (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id       INTEGER NOT NULL REFERENCES kg_entities(id) ON DELETE CASCADE,
    target_id       INTEGER NOT NULL REFERENCES kg_entities(id) ON DELETE CASCADE,
    type            TEXT NOT NULL,
    strength        REAL NOT NULL DEFAULT 0.5 CHECK (strength >= 0 AND strength <= 1),
    metadata        TEXT NOT NULL DEFAULT '{}',
    bidirectional   INTEGER NOT NULL DEFAULT 0,
    last_confirmed  TEXT NOT NULL,
    UNIQUE (source_id, target_id, type)
);

CREATE INDEX IF NOT EXISTS idx_kg_relations_source ON kg_relations (source_id);
CREATE INDEX IF NOT EXISTS idx_kg_relations_target ON kg_relations (target_id);

CREATE TABLE IF NOT EXISTS kg_changelog (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    ts          TEXT NOT NULL,
    action      TEXT NOT NULL,
    entity_id   INTEGER,
    relation_id INTEGER,
    detail      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_kg_changelog_ts ON kg_changelog (ts);

CREATE TRIGGER IF NOT EXISTS kg_changelog_prune AFTER INSERT ON kg_changelog BEGIN
    DELETE FROM kg_changelog WHERE ts < datetime('now', '-90 days');
END;

CREATE VIEW IF NOT EXISTS kg_entity_summary AS
    SELECT e.id, e.name, e.type, e.last_mentioned,
           (SELECT COUNT(*) FROM kg_relations r WHERE r.source_id = e.id OR r.target_id = e.id) AS relation_count
    FROM kg_entities e;
`
