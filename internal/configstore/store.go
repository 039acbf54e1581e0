// Package configstore provides the runtime configuration plane: a layered
// view over environment variables, the boot file, the credential store, and
// DB-backed section rows, with change notifications on writes.
package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/radbot/radbot/internal/db"
)

// ErrNotFound is returned when a section has no DB row.
var ErrNotFound = errors.New("config section not found")

// Entry is one persisted config section.
type Entry struct {
	Section   string          `json:"section" db:"section"`
	Value     json.RawMessage `json:"value" db:"value"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Store persists config sections as JSON documents keyed by section name.
type Store interface {
	Get(ctx context.Context, section string) (*Entry, error)
	Put(ctx context.Context, section string, value json.RawMessage) error
	Delete(ctx context.Context, section string) error
	List(ctx context.Context) ([]*Entry, error)
}

type sqlStore struct {
	pool *db.Pool
}

var _ Store = (*sqlStore)(nil)

// NewStore creates the SQL-backed config store and initializes its schema.
func NewStore(pool *db.Pool) (Store, error) {
	s := &sqlStore{pool: pool}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("config schema init: %w", err)
	}
	return s, nil
}

func (s *sqlStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS config_entries (
		section    TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`
	_, err := s.pool.Writer().Exec(schema)
	return err
}

func (s *sqlStore) Get(ctx context.Context, section string) (*Entry, error) {
	r := s.pool.Reader()
	var row struct {
		Section   string    `db:"section"`
		Value     string    `db:"value"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	query := r.Rebind(`SELECT section, value, updated_at FROM config_entries WHERE section = ?`)
	if err := r.GetContext(ctx, &row, query, section); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, section)
		}
		return nil, fmt.Errorf("get config section: %w", err)
	}
	return &Entry{Section: row.Section, Value: json.RawMessage(row.Value), UpdatedAt: row.UpdatedAt}, nil
}

func (s *sqlStore) Put(ctx context.Context, section string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("config section %s: value is not valid JSON", section)
	}
	w := s.pool.Writer()
	query := w.Rebind(`
		INSERT INTO config_entries (section, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(section) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at`)
	if _, err := w.ExecContext(ctx, query, section, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("put config section: %w", err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, section string) error {
	w := s.pool.Writer()
	query := w.Rebind(`DELETE FROM config_entries WHERE section = ?`)
	result, err := w.ExecContext(ctx, query, section)
	if err != nil {
		return fmt.Errorf("delete config section: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, section)
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context) ([]*Entry, error) {
	r := s.pool.Reader()
	var rows []struct {
		Section   string    `db:"section"`
		Value     string    `db:"value"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	if err := r.SelectContext(ctx, &rows, `SELECT section, value, updated_at FROM config_entries ORDER BY section`); err != nil {
		return nil, fmt.Errorf("list config sections: %w", err)
	}
	entries := make([]*Entry, len(rows))
	for i, row := range rows {
		entries[i] = &Entry{Section: row.Section, Value: json.RawMessage(row.Value), UpdatedAt: row.UpdatedAt}
	}
	return entries, nil
}
