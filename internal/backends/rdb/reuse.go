package rdb

import (
	"context"
	"database/sql"
	"errors"
)

type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// stmtCache is the gorm.ConnPool of a reuse session. Each distinct statement
// is prepared once on the session connection, or on the open transaction, and
// reused until the transaction ends or the session closes.
type stmtCache struct {
	conn  *sql.Conn
	tx    *sql.Tx
	stmts map[string]*sql.Stmt
}

func newStmtCache(conn *sql.Conn) *stmtCache {
	return &stmtCache{conn: conn, stmts: map[string]*sql.Stmt{}}
}

// bindTx switches the cache to tx, or back to the bare connection when tx is
// nil. Statements prepared on the previous target are closed.
func (c *stmtCache) bindTx(tx *sql.Tx) {
	c.reset()
	c.tx = tx
}

func (c *stmtCache) reset() {
	for query, st := range c.stmts {
		_ = st.Close()
		delete(c.stmts, query)
	}
}

func (c *stmtCache) target() preparer {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

func (c *stmtCache) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	if st, ok := c.stmts[query]; ok {
		return st, nil
	}
	st, err := c.target().PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	c.stmts[query] = st
	return st, nil
}

func (c *stmtCache) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	st, err := c.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return st.ExecContext(ctx, args...)
}

func (c *stmtCache) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	st, err := c.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return st.QueryContext(ctx, args...)
}

func (c *stmtCache) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	st, err := c.PrepareContext(ctx, query)
	if err != nil {
		// *sql.Row cannot carry an error of ours; let the target report it.
		return c.target().QueryRowContext(ctx, query, args...)
	}
	return st.QueryRowContext(ctx, args...)
}

// BeginTx lets gorm's Transaction helper run on a reuse session handle.
func (c *stmtCache) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if c.tx != nil {
		return nil, errors.New("session transaction already open")
	}
	return c.conn.BeginTx(ctx, opts)
}

func (c *stmtCache) len() int { return len(c.stmts) }
