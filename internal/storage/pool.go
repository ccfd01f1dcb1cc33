// Package storage is the embedded-database connection layer: a bounded
// pool of SQLite connections and a scoped-transaction cursor built on top
// of it. The knowledge graph, semantic memory, and nudge engine all sit on
// top of this package rather than opening *sql.DB directly.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/openclaw/kgraph/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

var log = logging.GetLogger("storage")

// MaxPoolSize is the maximum number of idle connections the pool retains.
const MaxPoolSize = 5

// Pool manages reusable SQLite connections for a single database file.
// Acquire hands out a verified-alive connection, opening a fresh one if
// none of the idle connections can be reused. Release returns the
// connection to the idle set if there is room and the connection is still
// alive, otherwise it is closed.
type Pool struct {
	path string

	mu    sync.Mutex
	idle  []*sql.DB
	inUse map[*sql.DB]struct{}
}

// NewPool creates a pool for the database file at path. The directory is
// created if missing; the database itself is opened lazily on first
// Acquire.
func NewPool(path string) (*Pool, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	return &Pool{
		path:  path,
		inUse: make(map[*sql.DB]struct{}),
	}, nil
}

// Path returns the database file path backing this pool.
func (p *Pool) Path() string {
	return p.path
}

func (p *Pool) open() (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL", p.path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each *sql.DB here models exactly one logical SQLite connection; the
	// pool, not database/sql, owns reuse and bounding.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Acquire returns a verified-alive connection, reusing an idle one when
// possible and opening a new one otherwise.
func (p *Pool) Acquire(ctx context.Context) (*sql.DB, error) {
	for {
		p.mu.Lock()
		n := len(p.idle)
		if n == 0 {
			p.mu.Unlock()
			break
		}
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()

		if err := conn.PingContext(ctx); err == nil {
			p.mu.Lock()
			p.inUse[conn] = struct{}{}
			p.mu.Unlock()
			return conn, nil
		}
		log.Debug("discarding dead idle connection", "path", p.path)
		conn.Close()
	}

	conn, err := p.open()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.inUse[conn] = struct{}{}
	p.mu.Unlock()
	return conn, nil
}

// Release returns conn to the idle set if there is room and it is still
// alive, otherwise closes it.
func (p *Pool) Release(conn *sql.DB) {
	p.mu.Lock()
	delete(p.inUse, conn)
	if len(p.idle) >= MaxPoolSize {
		p.mu.Unlock()
		conn.Close()
		return
	}
	alive := conn.Ping() == nil
	if !alive {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

// Discard removes conn from the in-use set and closes it without
// attempting to return it to the pool. Used when a scope is abandoned
// by a panic.
func (p *Pool) Discard(conn *sql.DB) {
	p.mu.Lock()
	delete(p.inUse, conn)
	p.mu.Unlock()
	conn.Close()
}

// CloseAll closes every idle and in-use connection and drains both sets.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, c := range p.idle {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.idle = nil
	for c := range p.inUse {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.inUse = make(map[*sql.DB]struct{})
	return firstErr
}

// Stats reports the current idle/in-use split, used by tests asserting
// the pool-size invariant.
type Stats struct {
	Idle  int
	InUse int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Idle: len(p.idle), InUse: len(p.inUse)}
}
