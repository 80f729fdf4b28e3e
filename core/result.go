package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one record of a result set, keyed by column name.
type Row map[string]any

// Result is the outcome of one statement: the rows of a read, or the
// affected-row count of a write.
type Result struct {
	// HasRows is true when the statement was executed as a read.
	HasRows      bool
	Columns      []string
	Rows         []Row
	RowsAffected int64
	// LastInsertID is 0 when the driver does not report it.
	LastInsertID int64
}

// Len returns the number of rows read.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// First returns the first row, if any.
func (r *Result) First() (Row, bool) {
	if r.Len() == 0 {
		return nil, false
	}
	return r.Rows[0], true
}

// String returns the column as text. NULL and missing columns yield "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column as an integer.
func (r Row) Int64(col string) (int64, error) {
	switch v := r[col].(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case nil:
		return 0, fmt.Errorf("column %s is null", col)
	default:
		return 0, fmt.Errorf("column %s: cannot convert %T to int64", col, v)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Time returns a DATE/DATETIME column as time.Time. Drivers that hand back
// text (SQLite without a declared date type, MySQL without parseTime) are
// parsed in the local zone.
func (r Row) Time(col string) (time.Time, error) {
	switch v := r[col].(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTime(col, v)
	case []byte:
		return parseTime(col, string(v))
	case nil:
		return time.Time{}, fmt.Errorf("column %s is null", col)
	default:
		return time.Time{}, fmt.Errorf("column %s: cannot convert %T to time.Time", col, v)
	}
}

func parseTime(col, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("column %s: unrecognized time %q", col, s)
}
