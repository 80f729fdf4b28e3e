package middleware

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shrek82/estetica-db/core"
	"github.com/shrek82/estetica-db/logger"
)

// SlowLogMiddleware reports statements whose lease, execution and release
// together take at least Threshold. Entries are warnings on the DB's logger,
// carrying the request's log fields, unless Path names a file or SetOutput
// was called; those destinations get a logger of their own.
type SlowLogMiddleware struct {
	Threshold time.Duration
	Path      string

	out  logger.Logger
	file *os.File
}

// NewSlowLog returns a slow statement log. An empty path reports through the
// DB's logger; otherwise JSON lines are appended to that file.
func NewSlowLog(threshold time.Duration, path string) *SlowLogMiddleware {
	return &SlowLogMiddleware{
		Threshold: threshold,
		Path:      path,
	}
}

// SetOutput sends entries to w as text lines instead.
func (m *SlowLogMiddleware) SetOutput(w io.Writer) {
	l := logger.NewStdLogger()
	l.SetOutput(w)
	m.out = l
}

func (m *SlowLogMiddleware) Name() string {
	return "SlowLog"
}

func (m *SlowLogMiddleware) Init(db *core.DB) error {
	if m.out != nil {
		return nil
	}
	if m.Path == "" {
		m.out = db.Logger()
		return nil
	}

	f, err := os.OpenFile(m.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open slow log file: %w", err)
	}
	l := logger.NewStdLogger()
	l.SetFormat(logger.LogFormatJSON)
	l.SetOutput(f)
	m.file, m.out = f, l
	return nil
}

func (m *SlowLogMiddleware) Shutdown() error {
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}

func (m *SlowLogMiddleware) Process(ctx context.Context, req *core.Request, next core.QueryFunc) (*core.Result, error) {
	start := time.Now()
	res, err := next(ctx, req)
	duration := time.Since(start)
	if duration < m.Threshold || m.out == nil {
		return res, err
	}

	kind := "write"
	if req.ReturnsRows() {
		kind = "read"
	}
	var rows int64
	if res != nil {
		rows = res.RowsAffected
	}
	fields := map[string]any{
		"slow_ms":      duration.Milliseconds(),
		"threshold_ms": m.Threshold.Milliseconds(),
	}
	for k, v := range req.Fields {
		fields[k] = v
	}

	l := m.out.WithFields(fields)
	if err != nil {
		l.Warn("slow %s [%v] %s | args: %v | failed: %v", kind, duration, req.BoundSQL, req.Args, err)
	} else {
		l.Warn("slow %s [%v] %s | args: %v | rows: %d", kind, duration, req.BoundSQL, req.Args, rows)
	}
	return res, err
}
