// Package estetica opens the pooled connection to the estetica_plus database
// and exposes the parameterized query helper.
package estetica

import (
	"context"

	"github.com/shrek82/estetica-db/config"
	"github.com/shrek82/estetica-db/core"
	"github.com/shrek82/estetica-db/middleware"
	"github.com/shrek82/estetica-db/pool"
)

// Re-export core types and functions
type (
	DB                  = core.DB
	Result              = core.Result
	Row                 = core.Row
	Config              = config.Config
	Stats               = pool.Stats
	ConnectionError     = core.ConnectionError
	ParameterCountError = core.ParameterCountError
	QueryExecutionError = core.QueryExecutionError
)

var (
	ErrConnection     = core.ErrConnection
	ErrPoolClosed     = core.ErrPoolClosed
	ErrParameterCount = core.ErrParameterCount
	ErrQueryExecution = core.ErrQueryExecution

	LoadConfig    = config.Load
	DefaultConfig = config.Default
)

// Open opens the pool described by cfg and installs the tracing middleware,
// plus the slow statement log when cfg.SlowThreshold is positive.
func Open(ctx context.Context, cfg *Config) (*DB, error) {
	db, err := core.OpenConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mws := []core.QueryMiddleware{middleware.NewTracing()}
	if cfg.SlowThreshold > 0 {
		mws = append(mws, middleware.NewSlowLog(cfg.SlowThreshold, ""))
	}
	if err := db.Use(mws...); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
