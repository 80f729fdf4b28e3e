package core

import (
	"context"
)

// Component is the base interface for all middleware.
type Component interface {
	Name() string
	Init(db *DB) error
	Shutdown() error
}

// QueryFunc is the function type for the next step in the middleware chain.
type QueryFunc func(ctx context.Context, req *Request) (*Result, error)

// QueryMiddleware is the interface for statement interceptors. Process must
// call next at most once; it sees every request after parameter checking.
type QueryMiddleware interface {
	Component
	Process(ctx context.Context, req *Request, next QueryFunc) (*Result, error)
}

func (db *DB) chain() QueryFunc {
	db.mu.RLock()
	mws := db.middlewares
	db.mu.RUnlock()

	next := db.execute
	for i := len(mws) - 1; i >= 0; i-- {
		m, inner := mws[i], next
		next = func(ctx context.Context, req *Request) (*Result, error) {
			return m.Process(ctx, req, inner)
		}
	}
	return next
}
