package core

import (
	"context"
	"strings"
	"time"

	"github.com/shrek82/estetica-db/pool"
)

// Mode selects how a statement is executed.
type Mode int

const (
	// ModeAuto reads rows for SELECT-like statements and statements with a
	// RETURNING clause, and reports affected rows for everything else.
	ModeAuto Mode = iota
	// ModeRows always reads a result set.
	ModeRows
	// ModeExec always reports affected rows.
	ModeExec
)

// Request is one statement travelling through the middleware chain.
type Request struct {
	// SQL is the statement as the caller wrote it, with ? placeholders.
	SQL  string
	Args []any
	Mode Mode
	// BoundSQL is SQL with placeholders in the driver's style.
	BoundSQL string
	// Fields are attached to the log lines of this request.
	Fields map[string]any

	rows bool
}

// WithFields adds log fields for this request.
func (r *Request) WithFields(fields map[string]any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		r.Fields[k] = v
	}
}

// ReturnsRows reports whether the request is executed as a read.
func (r *Request) ReturnsRows() bool {
	return r.rows
}

// Query executes one parameterized statement on a pooled connection.
// params bind positionally to the ? placeholders and must match them in
// number. Reads return Rows; writes return RowsAffected.
func (db *DB) Query(ctx context.Context, sql string, params ...any) (*Result, error) {
	return db.run(ctx, sql, params, ModeAuto)
}

// Select executes sql as a read regardless of its leading keyword.
func (db *DB) Select(ctx context.Context, sql string, params ...any) (*Result, error) {
	return db.run(ctx, sql, params, ModeRows)
}

// Exec executes sql as a write regardless of its leading keyword.
func (db *DB) Exec(ctx context.Context, sql string, params ...any) (*Result, error) {
	return db.run(ctx, sql, params, ModeExec)
}

func (db *DB) run(ctx context.Context, sql string, params []any, mode Mode) (*Result, error) {
	req, err := db.prepare(sql, params, mode)
	if err != nil {
		db.logger.Error("%v | SQL: %s | Args: %v", err, sql, params)
		return nil, err
	}
	return db.chain()(ctx, req)
}

func (db *DB) prepare(sql string, params []any, mode Mode) (*Request, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, &QueryExecutionError{SQL: sql, Message: "empty statement", Err: ErrInvalidSQL}
	}

	masked := mask(sql, syntaxOf(db.dialect))
	offsets := placeholderOffsets(masked)
	if len(offsets) != len(params) {
		return nil, &ParameterCountError{Placeholders: len(offsets), Params: len(params)}
	}

	req := &Request{
		SQL:      sql,
		Args:     params,
		Mode:     mode,
		BoundSQL: rebind(sql, offsets, db.dialect),
	}
	switch mode {
	case ModeRows:
		req.rows = true
	case ModeExec:
		req.rows = false
	default:
		req.rows = returnsRows(masked)
	}
	return req, nil
}

// execute is the innermost step of the chain: lease, run, release.
func (db *DB) execute(ctx context.Context, req *Request) (*Result, error) {
	log := db.logger
	if len(req.Fields) > 0 {
		log = log.WithFields(req.Fields)
	}

	start := time.Now()
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		log.SQLError(req.BoundSQL, time.Since(start), err, req.Args...)
		return nil, err
	}
	defer db.pool.Release(conn)

	var res *Result
	if req.rows {
		res, err = db.queryRows(ctx, conn, req)
	} else {
		res, err = db.exec(ctx, conn, req)
	}
	duration := time.Since(start)
	if err != nil {
		err = db.classify(conn, req, err)
		log.SQLError(req.BoundSQL, duration, err, req.Args...)
		return nil, err
	}

	log.SQL(req.BoundSQL, duration, req.Args...)
	return res, nil
}

func (db *DB) queryRows(ctx context.Context, conn *pool.Conn, req *Request) (*Result, error) {
	rows, err := conn.QueryxContext(ctx, req.BoundSQL, req.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	binary := make(map[string]bool)
	if types, err := rows.ColumnTypes(); err == nil {
		for _, ct := range types {
			name := strings.ToUpper(ct.DatabaseTypeName())
			if strings.Contains(name, "BLOB") || strings.Contains(name, "BINARY") || name == "BYTEA" {
				binary[ct.Name()] = true
			}
		}
	}

	res := &Result{HasRows: true, Columns: columns, Rows: []Row{}}
	for rows.Next() {
		row := make(map[string]any, len(columns))
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		for col, v := range row {
			if b, ok := v.([]byte); ok && !binary[col] {
				row[col] = string(b)
			}
		}
		res.Rows = append(res.Rows, Row(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	res.RowsAffected = int64(len(res.Rows))
	return res, nil
}

func (db *DB) exec(ctx context.Context, conn *pool.Conn, req *Request) (*Result, error) {
	r, err := conn.ExecContext(ctx, req.BoundSQL, req.Args...)
	if err != nil {
		return nil, err
	}
	affected, err := r.RowsAffected()
	if err != nil {
		return nil, err
	}
	res := &Result{RowsAffected: affected}
	// not every driver reports it (lib/pq never does)
	if id, err := r.LastInsertId(); err == nil {
		res.LastInsertID = id
	}
	return res, nil
}

// classify turns a driver error into a ConnectionError or a QueryExecutionError.
func (db *DB) classify(conn *pool.Conn, req *Request, err error) error {
	if db.dialect.IsConnectionError(err) {
		conn.MarkBroken()
		return &ConnectionError{Op: "query", Err: err}
	}
	qe := &QueryExecutionError{SQL: req.BoundSQL, Message: err.Error(), Err: err}
	if info, ok := db.dialect.Classify(err); ok {
		qe.Code = info.Code
		qe.Number = info.Number
		qe.SQLState = info.SQLState
		qe.Message = info.Message
	}
	return qe
}
