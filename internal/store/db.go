package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	_ "github.com/mattn/go-sqlite3"

	"rollbook/internal/attendance"
)

var logger = loggo.GetLogger("rollbook.store")

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DB wraps sql.DB together with the dialect of the engine behind it.
type DB struct {
	Client  *sql.DB
	Dialect attendance.Dialect
	Driver  string
}

// NewDB opens a database for driver and verifies it is reachable.
func NewDB(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, "sqlite", "":
		return NewSQLite(ctx, dsn)
	case DriverPostgres, "postgres":
		return NewPostgres(ctx, dsn)
	}
	return nil, errors.NotSupportedf("database driver %q", driver)
}

// NewPostgres creates a Postgres connection with sane defaults.
func NewPostgres(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open(DriverPostgres, connString)
	if err != nil {
		return nil, errors.Annotate(err, "opening postgres")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "pinging postgres")
	}
	return &DB{Client: db, Dialect: Postgres{}, Driver: DriverPostgres}, nil
}

// NewSQLite opens the database file at path, creating its directory when
// needed. ":memory:" opens a private in-memory database.
func NewSQLite(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		path = "attendance_batch.db"
	}
	memory := strings.HasPrefix(path, ":memory:")
	if !memory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Annotatef(err, "creating directory for %q", path)
			}
		}
	}

	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	if !memory {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, errors.Annotatef(err, "opening sqlite database %q", path)
	}
	// One connection keeps an in-memory database alive and serializes
	// writers on a file database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Annotatef(err, "pinging sqlite database %q", path)
	}
	logger.Debugf("opened sqlite database %q", path)
	return &DB{Client: db, Dialect: SQLite{}, Driver: DriverSQLite}, nil
}

// Healthy reports whether the database answers a ping.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
