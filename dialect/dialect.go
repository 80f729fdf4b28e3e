package dialect

import (
	"sort"
	"sync"
)

// ConnParams holds the driver-neutral connection parameters a Dialect turns
// into a DSN.
type ConnParams struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Params   map[string]string
}

// ErrorInfo is the diagnostic a Dialect extracts from a driver error.
type ErrorInfo struct {
	// Code is the symbolic error name, e.g. ER_DUP_ENTRY or unique_violation.
	Code string
	// Number is the vendor's numeric code when it has one.
	Number int
	// SQLState is the five character ANSI state, empty when the driver has none.
	SQLState string
	Message  string
}

// Dialect represents the driver-specific behavior the executor relies on.
// Each database (MySQL, PostgreSQL, SQLite) must implement this interface to be supported.
type Dialect interface {
	// Name returns the database/sql driver name
	Name() string
	// DefaultPort returns the port used when none is configured, 0 if not applicable
	DefaultPort() int
	// Placeholder returns the bind marker for the 1-based parameter index
	Placeholder(index int) string
	// DSN builds the driver data source name
	DSN(p ConnParams) string
	// Classify extracts code and state from a driver error; ok is false for
	// errors the driver did not produce
	Classify(err error) (info ErrorInfo, ok bool)
	// IsConnectionError reports whether err means the transport or the
	// credentials were rejected rather than the statement
	IsConnectionError(err error) bool
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// Register registers a new dialect for a given driver name
func Register(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Get retrieves a registered dialect by driver name
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// Names lists the registered driver names in order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
