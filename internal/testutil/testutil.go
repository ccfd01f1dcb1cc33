// Package testutil provides pool constructors shared across kgraph's
// package tests: temporary SQLite databases pre-loaded with the real
// kg and semanticmemory schemas.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openclaw/kgraph/internal/kg"
	"github.com/openclaw/kgraph/internal/semanticmemory"
	"github.com/openclaw/kgraph/internal/storage"
)

// NewKGPool opens a temporary knowledge graph database with the schema
// already applied, cleaned up automatically when the test ends.
func NewKGPool(t *testing.T) *storage.Pool {
	t.Helper()
	pool, err := storage.NewPool(filepath.Join(t.TempDir(), "kg.db"))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { pool.CloseAll() })
	if err := kg.EnsureSchema(context.Background(), pool); err != nil {
		t.Fatalf("kg.EnsureSchema: %v", err)
	}
	return pool
}

// NewMemoryPool opens a temporary semantic memory database with the
// schema already applied, cleaned up automatically when the test ends.
func NewMemoryPool(t *testing.T) *storage.Pool {
	t.Helper()
	pool, err := storage.NewPool(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { pool.CloseAll() })
	if err := semanticmemory.EnsureSchema(context.Background(), pool); err != nil {
		t.Fatalf("semanticmemory.EnsureSchema: %v", err)
	}
	return pool
}
