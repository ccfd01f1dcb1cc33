// Package semanticmemory is the content-addressed memory store: a
// hybrid vector-plus-keyword retrieval layer over SQLite, ported from
// the semantic_memory.py prototype this module replaces.
package semanticmemory

import "github.com/openclaw/kgraph/internal/logging"

var log = logging.GetLogger("semanticmemory")

// DefaultEmbeddingDim is the dimensionality of stored embeddings.
const DefaultEmbeddingDim = 384

// CoreSchema creates the memories table, its FTS5 shadow index, and the
// brute-force vector table. It mirrors semantic_memory.py's _init_db:
// a text+metadata row store, a content-rowid FTS5 index kept in sync by
// triggers, and a best-effort vector index that degrades gracefully when
// unavailable.
const CoreSchema = `
CREATE TABLE IF NOT EXISTS memories (
    id          TEXT PRIMARY KEY,
    text        TEXT NOT NULL,
    embedding   BLOB,
    metadata    TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL,
    session_id  TEXT,
    memory_type TEXT NOT NULL DEFAULT 'conversation'
);

CREATE INDEX IF NOT EXISTS idx_memories_session ON memories (session_id);
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories (created_at);
CREATE INDEX IF NOT EXISTS idx_memories_type ON memories (memory_type);

CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
    text, content='memories', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
    INSERT INTO memories_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
    INSERT INTO memories_fts(memories_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
    INSERT INTO memories_fts(memories_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
    INSERT INTO memories_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TABLE IF NOT EXISTS memory_vectors (
    memory_id TEXT PRIMARY KEY REFERENCES memories(id) ON DELETE CASCADE,
    vector    BLOB NOT NULL
);
`
