package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Scope is one cursor-scoped unit of work: an acquired connection plus an
// open transaction. All statements issued through a Scope commit or roll
// back together, and the underlying connection is released (or, on panic,
// discarded) on every exit path.
type Scope struct {
	pool *Pool
	ctx  context.Context
	conn *sql.DB
	tx   *sql.Tx
}

// Begin acquires a connection from the pool and opens a transaction scope
// on it.
func (p *Pool) Begin(ctx context.Context) (*Scope, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		p.Release(conn)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Scope{pool: p, ctx: ctx, conn: conn, tx: tx}, nil
}

// Exec runs a statement within the scope's transaction.
func (s *Scope) Exec(query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(s.ctx, query, args...)
}

// Query runs a query within the scope's transaction.
func (s *Scope) Query(query string, args ...any) (*sql.Rows, error) {
	return s.tx.QueryContext(s.ctx, query, args...)
}

// QueryRow runs a single-row query within the scope's transaction.
func (s *Scope) QueryRow(query string, args ...any) *sql.Row {
	return s.tx.QueryRowContext(s.ctx, query, args...)
}

// Context returns the scope's deadline-carrying context.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// commit commits the transaction and releases the connection back to the
// pool.
func (s *Scope) commit() error {
	err := s.tx.Commit()
	s.pool.Release(s.conn)
	return err
}

// rollback rolls back the transaction and releases the connection back to
// the pool.
func (s *Scope) rollback() error {
	err := s.tx.Rollback()
	s.pool.Release(s.conn)
	return err
}

// WithScope runs fn inside a fresh transaction scope: commits on a nil
// return, rolls back on error, and discards (closes, never returns to the
// pool) the connection if fn panics.
func (p *Pool) WithScope(ctx context.Context, fn func(*Scope) error) (err error) {
	scope, err := p.Begin(ctx)
	if err != nil {
		return err
	}

	panicked := true
	defer func() {
		if panicked {
			scope.tx.Rollback()
			p.Discard(scope.conn)
		}
	}()

	err = fn(scope)
	panicked = false

	if err != nil {
		if rbErr := scope.rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return scope.commit()
}
