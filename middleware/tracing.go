package middleware

import (
	"context"

	"github.com/shrek82/estetica-db/core"
)

type contextKey string

// Context keys read by TracingMiddleware.
const (
	RequestIDKey contextKey = "request_id"
	UserIPKey    contextKey = "user_ip"
	TraceIDKey   contextKey = "trace_id"
)

// TracingMiddleware copies request identifiers from the context into the
// statement's log fields.
type TracingMiddleware struct{}

func NewTracing() *TracingMiddleware {
	return &TracingMiddleware{}
}

// WithRequestID returns a context carrying a request id for TracingMiddleware.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithTraceID returns a context carrying a trace id for TracingMiddleware.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func (m *TracingMiddleware) Name() string {
	return "Tracing"
}

func (m *TracingMiddleware) Init(db *core.DB) error {
	return nil
}

func (m *TracingMiddleware) Shutdown() error {
	return nil
}

func (m *TracingMiddleware) Process(ctx context.Context, req *core.Request, next core.QueryFunc) (*core.Result, error) {
	fields := make(map[string]any)
	for _, key := range []contextKey{RequestIDKey, UserIPKey, TraceIDKey} {
		if v := ctx.Value(key); v != nil {
			fields[string(key)] = v
		}
	}

	if len(fields) > 0 {
		req.WithFields(fields)
	}

	return next(ctx, req)
}
