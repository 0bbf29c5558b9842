// Package drivers maps connection configuration onto database/sql drivers:
// it registers the MySQL, PostgreSQL and SQLite drivers, builds their DSNs,
// and extracts driver-specific error codes for diagnostics.
package drivers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	"modernc.org/sqlite"

	"github.com/vkoudela/koldy/internal/config"
)

// DefaultConnectTimeout bounds the initial ping when none is configured.
const DefaultConnectTimeout = 5 * time.Second

// ErrUnsupportedType is returned for connection types without a driver.
var ErrUnsupportedType = errors.New("drivers: unsupported connection type")

// DriverName returns the database/sql driver name for a connection type.
func DriverName(connType string) (string, error) {
	switch connType {
	case "mysql", "mariadb":
		return "mysql", nil
	case "postgres", "postgresql", "pgsql":
		return "postgres", nil
	case "sqlite":
		return "sqlite", nil
	case "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, connType)
	}
}

// DSN builds the driver data source name for a connection.
func DSN(conn config.Connection) (string, error) {
	switch conn.Type {
	case "mysql", "mariadb":
		return mysqlDSN(conn), nil
	case "postgres", "postgresql", "pgsql":
		return postgresDSN(conn), nil
	case "sqlite", "sqlite3":
		return sqliteDSN(conn), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, conn.Type)
	}
}

func mysqlDSN(conn config.Connection) string {
	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	port := conn.Port
	if port == 0 {
		port = 3306
	}
	host := conn.Host
	if host == "" {
		host = "localhost"
	}
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = conn.Database
	if conn.ConnectTimeout > 0 {
		cfg.Timeout = conn.ConnectTimeout
	}

	params := make(map[string]string, len(conn.DriverOptions)+1)
	if conn.Charset != "" {
		params["charset"] = conn.Charset
	}
	for k, v := range conn.DriverOptions {
		params[k] = v
	}
	if len(params) > 0 {
		cfg.Params = params
	}
	return cfg.FormatDSN()
}

func postgresDSN(conn config.Connection) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	host := conn.Host
	if host == "" {
		host = "localhost"
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + conn.Database,
	}
	if conn.Username != "" {
		if conn.Password != "" {
			u.User = url.UserPassword(conn.Username, conn.Password)
		} else {
			u.User = url.User(conn.Username)
		}
	}

	q := url.Values{}
	if conn.Charset != "" {
		q.Set("client_encoding", conn.Charset)
	}
	if conn.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(conn.ConnectTimeout.Seconds())))
	}
	for k, v := range conn.DriverOptions {
		q.Set(k, v)
	}
	if _, ok := q["sslmode"]; !ok {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func sqliteDSN(conn config.Connection) string {
	if len(conn.DriverOptions) == 0 {
		return conn.Database
	}

	keys := make([]string, 0, len(conn.DriverOptions))
	for k := range conn.DriverOptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		q.Add(k, conn.DriverOptions[k])
	}
	return "file:" + conn.Database + "?" + q.Encode()
}

// Open opens and pings a connection. The handle is closed again if the ping
// fails, so a failed Open never leaves a pool behind.
func Open(ctx context.Context, conn config.Connection) (*sql.DB, error) {
	driverName, err := DriverName(conn.Type)
	if err != nil {
		return nil, err
	}
	dsn, err := DSN(conn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	configurePool(db, conn)

	timeout := conn.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func configurePool(db *sql.DB, conn config.Connection) {
	switch conn.Type {
	case "sqlite", "sqlite3":
		// One long-lived connection keeps :memory: databases and write locks coherent.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}

	if conn.MaxOpenConns > 0 {
		db.SetMaxOpenConns(conn.MaxOpenConns)
	}
	if !conn.IsPersistent() {
		db.SetMaxIdleConns(0)
	} else if conn.MaxIdleConns > 0 {
		db.SetMaxIdleConns(conn.MaxIdleConns)
	}
	if conn.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(conn.ConnMaxLifetime)
	}
}

// ErrorCode extracts the native error code from a driver error, or "" when
// the error did not come from a known driver.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return strconv.Itoa(liteErr.Code())
	}

	return ""
}
