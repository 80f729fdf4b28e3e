package core

import (
	"errors"
	"fmt"

	"github.com/shrek82/estetica-db/pool"
)

var (
	// ErrConnection matches every pool or transport failure.
	ErrConnection = pool.ErrConnection
	// ErrPoolClosed is returned once the DB has been closed.
	ErrPoolClosed = pool.ErrPoolClosed
	// ErrParameterCount is matched by ParameterCountError.
	ErrParameterCount = errors.New("parameter count mismatch")
	// ErrQueryExecution is matched by QueryExecutionError.
	ErrQueryExecution = errors.New("query execution failed")
	// ErrInvalidSQL is returned when a raw SQL statement is empty.
	ErrInvalidSQL = errors.New("invalid sql")
)

// ConnectionError reports a pool or transport failure.
type ConnectionError = pool.ConnectionError

// ParameterCountError is returned when the number of ? placeholders in a
// statement differs from the number of bind values. Nothing is executed.
type ParameterCountError struct {
	Placeholders int
	Params       int
}

func (e *ParameterCountError) Error() string {
	return fmt.Sprintf("%v: statement has %d placeholders, got %d params", ErrParameterCount, e.Placeholders, e.Params)
}

func (e *ParameterCountError) Is(target error) bool {
	return target == ErrParameterCount
}

// QueryExecutionError is a statement the server rejected: syntax, constraint
// violation, type mismatch. Code and SQLState come from the driver when it
// provides them.
type QueryExecutionError struct {
	SQL      string
	Code     string
	Number   int
	SQLState string
	Message  string
	Err      error
}

func (e *QueryExecutionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v: %s: %s", ErrQueryExecution, e.Code, e.Message)
	}
	return fmt.Sprintf("%v: %s", ErrQueryExecution, e.Message)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

func (e *QueryExecutionError) Is(target error) bool {
	return target == ErrQueryExecution
}
