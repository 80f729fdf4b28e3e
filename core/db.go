package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shrek82/estetica-db/config"
	"github.com/shrek82/estetica-db/dialect"
	"github.com/shrek82/estetica-db/logger"
	"github.com/shrek82/estetica-db/pool"
)

// DB is the query executor. It owns no state between calls besides the
// injected pool, so it is safe for concurrent use.
type DB struct {
	pool    *pool.Pool
	dialect dialect.Dialect
	logger  logger.Logger

	mu          sync.RWMutex
	middlewares []QueryMiddleware
}

// New builds a DB over an already opened pool.
func New(p *pool.Pool, l logger.Logger) (*DB, error) {
	d, ok := dialect.Get(p.Driver())
	if !ok {
		return nil, fmt.Errorf("unknown dialect %s", p.Driver())
	}
	if l == nil {
		l = logger.NewStdLogger()
	}
	return &DB{
		pool:    p,
		dialect: d,
		logger:  l,
	}, nil
}

// Open initializes a new DB instance with the given driver and DSN.
func Open(ctx context.Context, driver, dsn string, opts *pool.Options) (*DB, error) {
	if _, ok := dialect.Get(driver); !ok {
		return nil, fmt.Errorf("unknown dialect %s", driver)
	}

	var o pool.Options
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = logger.NewStdLogger()
	}

	p, err := pool.Open(ctx, driver, dsn, &o)
	if err != nil {
		return nil, err
	}
	return New(p, o.Logger)
}

// OpenConfig opens the pool described by cfg, with a logger honoring the
// configured level and format.
func OpenConfig(ctx context.Context, cfg *config.Config) (*DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	l := NewLogger(cfg)
	l.Info("connecting to %s", cfg)
	return Open(ctx, cfg.Driver, dsn, &pool.Options{
		Size:           cfg.MaxPoolSize,
		AcquireTimeout: cfg.AcquireTimeout,
		Logger:         l,
	})
}

// NewLogger returns the standard logger configured from cfg.
func NewLogger(cfg *config.Config) logger.Logger {
	l := logger.NewStdLogger()
	if cfg.LogLevel != "" {
		l.SetLevel(logger.ParseLevel(cfg.LogLevel))
	}
	if cfg.LogFormat == string(logger.LogFormatJSON) {
		l.SetFormat(logger.LogFormatJSON)
	}
	return l
}

// Close shuts down middleware and then the pool. Later queries fail with ErrPoolClosed.
func (db *DB) Close() error {
	db.mu.Lock()
	mws := db.middlewares
	db.middlewares = nil
	db.mu.Unlock()

	var errs []error
	for _, m := range mws {
		if err := m.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("middleware %s shutdown: %w", m.Name(), err))
		}
	}
	if err := db.pool.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SetLogger sets a custom logger for the DB.
func (db *DB) SetLogger(l logger.Logger) {
	db.logger = l
}

// Logger returns the DB's logger.
func (db *DB) Logger() logger.Logger {
	return db.logger
}

// Dialect returns the dialect of the underlying driver.
func (db *DB) Dialect() dialect.Dialect {
	return db.dialect
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pool.Pool {
	return db.pool
}

// Stats returns the pool's bookkeeping snapshot.
func (db *DB) Stats() pool.Stats {
	return db.pool.Stats()
}

// Use initializes and appends middleware to the chain, outermost first.
func (db *DB) Use(mws ...QueryMiddleware) error {
	for _, m := range mws {
		if err := m.Init(db); err != nil {
			return fmt.Errorf("middleware %s init: %w", m.Name(), err)
		}
		db.mu.Lock()
		db.middlewares = append(db.middlewares, m)
		db.mu.Unlock()
	}
	return nil
}

// Ping leases a connection and checks that the server still answers.
func (db *DB) Ping(ctx context.Context) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer db.pool.Release(conn)

	if err := conn.PingContext(ctx); err != nil {
		conn.MarkBroken()
		return &ConnectionError{Op: "ping", Err: err}
	}
	return nil
}
