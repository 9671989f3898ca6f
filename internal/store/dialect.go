package store

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/juju/errors"
	"github.com/mattn/go-sqlite3"
)

// SQLite is the dialect of github.com/mattn/go-sqlite3.
type SQLite struct{}

func (SQLite) Schema() []string {
	return []string{`
		CREATE TABLE IF NOT EXISTS students (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			roll       TEXT NOT NULL UNIQUE,
			batch      TEXT,
			department TEXT
		)`, `
		CREATE TABLE IF NOT EXISTS attendance (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			student_id INTEGER NOT NULL,
			att_date   TEXT NOT NULL,
			status     TEXT NOT NULL CHECK (status IN ('Present', 'Absent')),
			UNIQUE(student_id, att_date),
			FOREIGN KEY(student_id) REFERENCES students(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(att_date)`,
	}
}

// RollOrder relies on SQLite's default BINARY collation.
func (SQLite) RollOrder(col string) string { return col }

func (SQLite) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (SQLite) IsForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// Postgres is the dialect of github.com/jackc/pgx/v5.
type Postgres struct{}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func (Postgres) Schema() []string {
	return []string{`
		CREATE TABLE IF NOT EXISTS students (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			roll       TEXT NOT NULL UNIQUE,
			batch      TEXT,
			department TEXT
		)`, `
		CREATE TABLE IF NOT EXISTS attendance (
			id         BIGSERIAL PRIMARY KEY,
			student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			att_date   TEXT NOT NULL,
			status     TEXT NOT NULL CHECK (status IN ('Present', 'Absent')),
			UNIQUE (student_id, att_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(att_date)`,
	}
}

// RollOrder forces the C collation so rolls sort byte-wise regardless of the
// database locale.
func (Postgres) RollOrder(col string) string { return col + ` COLLATE "C"` }

func (Postgres) IsUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func (Postgres) IsForeignKeyViolation(err error) bool {
	return pgCode(err) == pgForeignKeyViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
