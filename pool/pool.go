package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shrek82/estetica-db/logger"
)

// DefaultSize is the number of handles opened when Options.Size is not set.
const DefaultSize = 10

// Options defines the configuration for the connection pool.
type Options struct {
	// Size is the fixed number of handles, opened eagerly.
	Size int
	// AcquireTimeout bounds how long Acquire waits for an idle handle.
	// Zero waits until the caller's context ends.
	AcquireTimeout time.Duration
	Logger         logger.Logger
}

// Stats is a snapshot of the pool's bookkeeping.
type Stats struct {
	Size     int
	Idle     int
	InUse    int
	Waiting  int
	Acquired int64
	Closed   bool
}

// Pool is a fixed-size set of dedicated database sessions. Each handle is
// leased to at most one caller between Acquire and Release.
type Pool struct {
	db             *sqlx.DB
	driver         string
	size           int
	acquireTimeout time.Duration
	logger         logger.Logger

	idle chan *Conn
	done chan struct{}

	mu       sync.Mutex
	closed   bool
	inUse    int
	waiting  int
	acquired int64
}

// Open connects to the database and checks out Size sessions up front.
// Unreachable servers and rejected credentials fail here with a ConnectionError.
func Open(ctx context.Context, driver, dsn string, opts *Options) (*Pool, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.Logger == nil {
		o.Logger = logger.NewStdLogger()
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, &ConnectionError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(o.Size)
	db.SetMaxIdleConns(o.Size)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Op: "open", Err: err}
	}

	p := &Pool{
		db:             db,
		driver:         driver,
		size:           o.Size,
		acquireTimeout: o.AcquireTimeout,
		logger:         o.Logger,
		idle:           make(chan *Conn, o.Size),
		done:           make(chan struct{}),
	}

	for i := 0; i < o.Size; i++ {
		conn, err := db.Connx(ctx)
		if err != nil {
			p.Shutdown()
			return nil, &ConnectionError{Op: "open", Err: fmt.Errorf("handle %d: %w", i, err)}
		}
		p.idle <- &Conn{id: i, pool: p, conn: conn}
	}

	p.logger.Info("pool opened: driver=%s size=%d", driver, o.Size)
	return p, nil
}

// Driver returns the database/sql driver name the pool was opened with.
func (p *Pool) Driver() string {
	return p.driver
}

// Size returns the fixed number of handles.
func (p *Pool) Size() int {
	return p.size
}

// Acquire returns an idle handle, suspending the caller while every handle is
// leased. It fails with a ConnectionError when ctx ends, when the pool is shut
// down (wrapping ErrPoolClosed), or when a lost session cannot be reopened.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &ConnectionError{Op: "acquire", Err: ErrPoolClosed}
	}
	p.waiting++
	p.mu.Unlock()

	var c *Conn
	select {
	case c = <-p.idle:
	case <-p.done:
	case <-ctx.Done():
	}

	p.mu.Lock()
	p.waiting--
	switch {
	case c == nil && p.closed:
		p.mu.Unlock()
		return nil, &ConnectionError{Op: "acquire", Err: ErrPoolClosed}
	case c == nil:
		p.mu.Unlock()
		return nil, &ConnectionError{Op: "acquire", Err: ctx.Err()}
	case p.closed:
		p.mu.Unlock()
		c.close()
		return nil, &ConnectionError{Op: "acquire", Err: ErrPoolClosed}
	}
	c.leased = true
	p.inUse++
	p.acquired++
	p.mu.Unlock()

	if c.conn == nil {
		conn, err := p.db.Connx(ctx)
		if err != nil {
			p.Release(c)
			return nil, &ConnectionError{Op: "acquire", Err: err}
		}
		c.conn = conn
		p.logger.Warn("pool: handle %d reopened", c.id)
	}
	return c, nil
}

// Release returns a leased handle to the idle set. Releasing a handle twice,
// or one from another pool, does nothing. After Shutdown the handle is closed.
func (p *Pool) Release(c *Conn) {
	if c == nil || c.pool != p {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !c.leased {
		return
	}
	c.leased = false
	p.inUse--

	if c.broken {
		c.close()
		c.broken = false
	}
	if p.closed {
		c.close()
		return
	}
	// never blocks: at most size handles exist
	p.idle <- c
}

// Shutdown closes every idle handle and the underlying database. Leased
// handles are closed as they are released. Later Acquire calls fail with
// ErrPoolClosed. Calling Shutdown more than once is safe.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	for drained := false; !drained; {
		select {
		case c := <-p.idle:
			c.close()
		default:
			drained = true
		}
	}
	inUse := p.inUse
	p.mu.Unlock()

	if inUse > 0 {
		p.logger.Warn("pool: shutdown with %d handles still leased", inUse)
	}
	err := p.db.Close()
	p.logger.Info("pool closed: driver=%s", p.driver)
	return err
}

// Stats returns a snapshot of the pool's bookkeeping.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Size:     p.size,
		Idle:     len(p.idle),
		InUse:    p.inUse,
		Waiting:  p.waiting,
		Acquired: p.acquired,
		Closed:   p.closed,
	}
}
