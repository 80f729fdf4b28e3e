package dialect

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

func init() {
	Register("postgres", &postgres{})
}

// PostgreSQL dialect implementation
type postgres struct{}

func (d *postgres) Name() string {
	return "postgres"
}

func (d *postgres) DefaultPort() int {
	return 5432
}

// PostgreSQL uses $1, $2, $3... for placeholders
func (d *postgres) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

func (d *postgres) DSN(p ConnParams) string {
	port := p.Port
	if port == 0 {
		port = d.DefaultPort()
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(port)),
		Path:   "/" + p.Database,
	}
	q := url.Values{}
	for k, v := range p.Params {
		q.Set(k, v)
	}
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *postgres) Classify(err error) (ErrorInfo, bool) {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return ErrorInfo{}, false
	}
	return ErrorInfo{
		Code:     pe.Code.Name(),
		SQLState: string(pe.Code),
		Message:  pe.Message,
	}, true
}

func (d *postgres) IsConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
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
	var pe *pq.Error
	if errors.As(err, &pe) {
		// 08: connection exception, 28: invalid authorization, 3D000: unknown database
		class := string(pe.Code.Class())
		return class == "08" || class == "28" || strings.EqualFold(string(pe.Code), "3D000")
	}
	return false
}
