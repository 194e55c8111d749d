// Package sqlstore implements the repository interfaces on top of a
// database/sql connection pool.
//
// Two drivers are supported:
//   - "sqlite"   modernc.org/sqlite, pure Go, the default for development and tests
//   - "postgres" github.com/lib/pq, for production deployments
//
// Queries are written once with "?" placeholders and rebound to "$1, $2, ..."
// when the pool talks to Postgres. Only the schema (see migrate.go) differs
// between the two.
//
// The pool is the single shared resource of the process: every repository
// method checks a connection out for one statement (or one transaction) and
// returns it when done.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/imitation/backend/internal/repository"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Options configures the pool.
type Options struct {
	Driver          Driver
	DSN             string // file path (sqlite) or connection URL (postgres)
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SkipMigrate leaves the schema untouched; the caller runs Migrate.
	SkipMigrate bool
}

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn   *sql.DB
	driver Driver
}

// New opens the pool, verifies it with a ping and, unless SkipMigrate is set,
// applies pending migrations.
func New(ctx context.Context, opts Options) (*DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}

	var (
		dsn string
		err error
	)
	switch opts.Driver {
	case DriverSQLite:
		dsn, err = sqliteDSN(opts.DSN)
		if err != nil {
			return nil, err
		}
	case DriverPostgres:
		dsn = opts.DSN
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", opts.Driver)
	}

	conn, err := sql.Open(string(opts.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening database: %w", err)
	}

	if opts.Driver == DriverSQLite {
		// SQLite allows a single writer. One connection serialises statements
		// in the pool instead of surfacing SQLITE_BUSY to requests, and keeps
		// ":memory:" databases from splitting across connections.
		conn.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			conn.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			conn.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging database: %w", err)
	}

	db := &DB{conn: conn, driver: opts.Driver}

	if !opts.SkipMigrate {
		if _, err := db.Migrate(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that a connection can be acquired. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Driver reports which SQL dialect the pool speaks.
func (db *DB) Driver() Driver {
	return db.driver
}

// sqliteDSN turns a database path into a modernc DSN with the pragmas every
// connection needs. Paths that already carry query parameters are used as-is.
func sqliteDSN(path string) (string, error) {
	if path == "" {
		path = "data/app.db"
	}
	if strings.Contains(path, "?") {
		return path, nil
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("sqlstore: creating database directory: %w", err)
		}
	}
	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_time_format=sqlite",
	}
	if path != ":memory:" {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	return path + "?" + strings.Join(params, "&"), nil
}

// rebind rewrites "?" placeholders to "$n" for Postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports whether err is a unique/primary-key constraint
// failure from either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}

// now returns the timestamp written to created_at columns. UTC keeps SQLite's
// text timestamps sortable.
func now() time.Time {
	return time.Now().UTC()
}
