package pool

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Conn is a single database session owned by a Pool. It executes one
// statement at a time and must be given back with Pool.Release.
type Conn struct {
	id     int
	pool   *Pool
	conn   *sqlx.Conn
	leased bool
	broken bool
}

// ID identifies the handle's slot in the pool.
func (c *Conn) ID() int {
	return c.id
}

// QueryxContext executes a query that returns rows, typically a SELECT.
func (c *Conn) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return c.conn.QueryxContext(ctx, query, args...)
}

// ExecContext executes a query that doesn't return rows, such as an INSERT or UPDATE.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

// PingContext verifies the session is still alive.
func (c *Conn) PingContext(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

// MarkBroken flags the session as lost. Release closes it and the next
// Acquire of this slot opens a replacement.
func (c *Conn) MarkBroken() {
	c.pool.mu.Lock()
	c.broken = true
	c.pool.mu.Unlock()
}

func (c *Conn) close() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
