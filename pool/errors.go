package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection is matched by every failure to reach or keep a database session.
	ErrConnection = errors.New("connection error")
	// ErrPoolClosed is returned by Acquire once Shutdown has been called.
	ErrPoolClosed = errors.New("pool is closed")
)

// ConnectionError reports a pool or transport failure: the database is
// unreachable, credentials were rejected, a session was lost, the wait for a
// handle was cancelled, or the pool is closed.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection error: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrConnection) true for every ConnectionError.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}
