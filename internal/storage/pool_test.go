package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	pool, err := NewPool(path)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { pool.CloseAll() })
	return pool
}

func TestPoolAcquireRelease(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if stats := pool.Stats(); stats.InUse != 1 || stats.Idle != 0 {
		t.Fatalf("expected 1 in-use, 0 idle, got %+v", stats)
	}

	pool.Release(conn)
	if stats := pool.Stats(); stats.InUse != 0 || stats.Idle != 1 {
		t.Fatalf("expected 0 in-use, 1 idle after release, got %+v", stats)
	}
}

// TestPoolNeverExceedsMaxIdle is property P10: the pool never holds more
// than MaxPoolSize idle connections.
func TestPoolNeverExceedsMaxIdle(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	var held []*sql.DB
	for i := 0; i < MaxPoolSize+3; i++ {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		held = append(held, conn)
	}

	for _, conn := range held {
		pool.Release(conn)
	}

	stats := pool.Stats()
	if stats.Idle > MaxPoolSize {
		t.Fatalf("pool holds %d idle connections, want <= %d", stats.Idle, MaxPoolSize)
	}
	if stats.InUse != 0 {
		t.Fatalf("expected 0 in-use after releasing all, got %d", stats.InUse)
	}
}

func TestWithScopeCommitsOnSuccess(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	err := pool.WithScope(ctx, func(s *Scope) error {
		_, err := s.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY)`)
		return err
	})
	if err != nil {
		t.Fatalf("WithScope: %v", err)
	}

	err = pool.WithScope(ctx, func(s *Scope) error {
		var count int
		return s.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count)
	})
	if err != nil {
		t.Fatalf("table not visible after commit: %v", err)
	}
}

func TestWithScopeRollsBackOnError(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	if err := pool.WithScope(ctx, func(s *Scope) error {
		_, err := s.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY)`)
		return err
	}); err != nil {
		t.Fatalf("setup WithScope: %v", err)
	}

	sentinel := errInjected
	err := pool.WithScope(ctx, func(s *Scope) error {
		if _, err := s.Exec(`INSERT INTO t (id) VALUES (1)`); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	err = pool.WithScope(ctx, func(s *Scope) error {
		var count int
		if err := s.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count); err != nil {
			return err
		}
		if count != 0 {
			t.Errorf("expected rollback to discard insert, found %d rows", count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify WithScope: %v", err)
	}
}

var errInjected = &injectedError{"injected failure"}

type injectedError struct{ msg string }

func (e *injectedError) Error() string { return e.msg }
