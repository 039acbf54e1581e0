// Package dialect provides SQL fragment helpers for SQLite/PostgreSQL
// portability. Stores write queries with ? placeholders and rebind them via
// sqlx; the helpers here cover the fragments that differ beyond placeholders.
package dialect

import "fmt"

const (
	SQLite3 = "sqlite3"
	PGX     = "pgx"
)

// IsPostgres returns true if the driver is PostgreSQL (pgx).
func IsPostgres(driver string) bool {
	return driver == PGX
}

// Now returns the SQL expression for the current timestamp.
func Now(driver string) string {
	if IsPostgres(driver) {
		return "NOW()"
	}
	return "datetime('now')"
}

// UpsertConflict returns the conflict clause for an idempotent insert keyed
// on the given column.
//
//	SQLite:   ON CONFLICT(col) DO UPDATE SET ...
//	Postgres: ON CONFLICT (col) DO UPDATE SET ...
//
// Both accept the same spelling, so this only exists to keep intent visible
// at call sites and to centralize any future divergence.
func UpsertConflict(col string) string {
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET", col)
}

// Blob returns the column type for binary data.
func Blob(driver string) string {
	if IsPostgres(driver) {
		return "BYTEA"
	}
	return "BLOB"
}

// BoolToInt converts a boolean to an integer for SQL storage.
func BoolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
