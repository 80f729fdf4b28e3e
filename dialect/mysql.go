package dialect

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

func init() {
	Register("mysql", &mysqlDialect{})
}

// MySQL dialect implementation
type mysqlDialect struct{}

// mysqlCodes names the server errors callers are most likely to branch on.
var mysqlCodes = map[uint16]string{
	1044: "ER_DBACCESS_DENIED_ERROR",
	1045: "ER_ACCESS_DENIED_ERROR",
	1048: "ER_BAD_NULL_ERROR",
	1049: "ER_BAD_DB_ERROR",
	1054: "ER_BAD_FIELD_ERROR",
	1062: "ER_DUP_ENTRY",
	1064: "ER_PARSE_ERROR",
	1146: "ER_NO_SUCH_TABLE",
	1205: "ER_LOCK_WAIT_TIMEOUT",
	1213: "ER_LOCK_DEADLOCK",
	1292: "ER_TRUNCATED_WRONG_VALUE",
	1364: "ER_NO_DEFAULT_FOR_FIELD",
	1366: "ER_TRUNCATED_WRONG_VALUE_FOR_FIELD",
	1406: "ER_DATA_TOO_LONG",
	1451: "ER_ROW_IS_REFERENCED_2",
	1452: "ER_NO_REFERENCED_ROW_2",
	3819: "ER_CHECK_CONSTRAINT_VIOLATED",
}

func (d *mysqlDialect) Name() string {
	return "mysql"
}

func (d *mysqlDialect) DefaultPort() int {
	return 3306
}

func (d *mysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *mysqlDialect) DSN(p ConnParams) string {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	port := p.Port
	if port == 0 {
		port = d.DefaultPort()
	}
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(port))
	cfg.DBName = p.Database
	// DATE and DATETIME columns come back as time.Time
	cfg.ParseTime = true
	// UPDATE reports matched rows, not only the ones whose values changed
	cfg.ClientFoundRows = true
	if len(p.Params) > 0 {
		cfg.Params = make(map[string]string, len(p.Params))
		for k, v := range p.Params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN()
}

func (d *mysqlDialect) Classify(err error) (ErrorInfo, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return ErrorInfo{}, false
	}
	code, ok := mysqlCodes[me.Number]
	if !ok {
		code = "ER_" + strconv.Itoa(int(me.Number))
	}
	return ErrorInfo{
		Code:     code,
		Number:   int(me.Number),
		SQLState: strings.TrimRight(string(me.SQLState[:]), "\x00"),
		Message:  me.Message,
	}, true
}

func (d *mysqlDialect) IsConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	// context errors satisfy net.Error but the session is still healthy
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1044, 1045, 1049:
			return true
		}
	}
	return false
}
