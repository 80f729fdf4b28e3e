package dialect

import (
	"database/sql/driver"
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/mattn/go-sqlite3"
)

func init() {
	Register("sqlite3", &sqlite3Dialect{})
}

// SQLite dialect implementation
type sqlite3Dialect struct{}

var sqliteCodes = map[sqlite3.ErrNo]string{
	sqlite3.ErrError:      "SQLITE_ERROR",
	sqlite3.ErrInternal:   "SQLITE_INTERNAL",
	sqlite3.ErrPerm:       "SQLITE_PERM",
	sqlite3.ErrBusy:       "SQLITE_BUSY",
	sqlite3.ErrLocked:     "SQLITE_LOCKED",
	sqlite3.ErrReadonly:   "SQLITE_READONLY",
	sqlite3.ErrIoErr:      "SQLITE_IOERR",
	sqlite3.ErrCorrupt:    "SQLITE_CORRUPT",
	sqlite3.ErrCantOpen:   "SQLITE_CANTOPEN",
	sqlite3.ErrConstraint: "SQLITE_CONSTRAINT",
	sqlite3.ErrMismatch:   "SQLITE_MISMATCH",
	sqlite3.ErrRange:      "SQLITE_RANGE",
	sqlite3.ErrNotADB:     "SQLITE_NOTADB",
	sqlite3.ErrAuth:       "SQLITE_AUTH",
}

var sqliteExtendedCodes = map[sqlite3.ErrNoExtended]string{
	sqlite3.ErrConstraintCheck:      "SQLITE_CONSTRAINT_CHECK",
	sqlite3.ErrConstraintForeignKey: "SQLITE_CONSTRAINT_FOREIGNKEY",
	sqlite3.ErrConstraintNotNull:    "SQLITE_CONSTRAINT_NOTNULL",
	sqlite3.ErrConstraintPrimaryKey: "SQLITE_CONSTRAINT_PRIMARYKEY",
	sqlite3.ErrConstraintUnique:     "SQLITE_CONSTRAINT_UNIQUE",
}

func (d *sqlite3Dialect) Name() string {
	return "sqlite3"
}

func (d *sqlite3Dialect) DefaultPort() int {
	return 0
}

func (d *sqlite3Dialect) Placeholder(index int) string {
	return "?"
}

// DSN uses Database as the file path; host and credentials do not apply.
func (d *sqlite3Dialect) DSN(p ConnParams) string {
	if len(p.Params) == 0 {
		return p.Database
	}
	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(p.Database)
	sep := "?"
	if strings.Contains(p.Database, "?") {
		sep = "&"
	}
	for _, k := range keys {
		sb.WriteString(sep)
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Params[k]))
		sep = "&"
	}
	return sb.String()
}

func (d *sqlite3Dialect) Classify(err error) (ErrorInfo, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return ErrorInfo{}, false
	}
	code, ok := sqliteExtendedCodes[se.ExtendedCode]
	if !ok {
		code, ok = sqliteCodes[se.Code]
	}
	if !ok {
		code = "SQLITE_" + strings.ToUpper(strings.ReplaceAll(se.Code.Error(), " ", "_"))
	}
	return ErrorInfo{
		Code:    code,
		Number:  int(se.ExtendedCode),
		Message: se.Error(),
	}, true
}

func (d *sqlite3Dialect) IsConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrAuth:
			return true
		}
	}
	return false
}
