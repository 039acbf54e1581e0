package webhook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radbot/radbot/internal/db"
)

type sqlStore struct {
	pool *db.Pool
}

var _ Store = (*sqlStore)(nil)

// NewStore creates the SQL-backed webhook store and initializes its schema.
func NewStore(pool *db.Pool) (Store, error) {
	s := &sqlStore{pool: pool}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("webhook schema init: %w", err)
	}
	return s, nil
}

func (s *sqlStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS webhook_definitions (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL UNIQUE,
		path_suffix       TEXT NOT NULL UNIQUE,
		prompt_template   TEXT NOT NULL,
		secret            TEXT NOT NULL DEFAULT '',
		session_id        TEXT NOT NULL DEFAULT '',
		enabled           INTEGER NOT NULL DEFAULT 1,
		trigger_count     INTEGER NOT NULL DEFAULT 0,
		last_triggered_at TIMESTAMP,
		created_at        TIMESTAMP NOT NULL
	);
	`
	_, err := s.pool.Writer().Exec(schema)
	return err
}

func (s *sqlStore) Create(ctx context.Context, def *Definition) error {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}
	w := s.pool.Writer()
	query := w.Rebind(`
		INSERT INTO webhook_definitions
			(id, name, path_suffix, prompt_template, secret, session_id, enabled, trigger_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`)
	if _, err := w.ExecContext(ctx, query,
		def.ID, def.Name, def.PathSuffix, def.PromptTemplate, def.Secret,
		def.SessionID, def.Enabled, def.CreatedAt,
	); err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*Definition, error) {
	return s.getWhere(ctx, `id = ?`, id)
}

func (s *sqlStore) GetBySuffix(ctx context.Context, suffix string) (*Definition, error) {
	return s.getWhere(ctx, `path_suffix = ?`, suffix)
}

func (s *sqlStore) getWhere(ctx context.Context, clause, arg string) (*Definition, error) {
	r := s.pool.Reader()
	var def Definition
	query := r.Rebind(`SELECT * FROM webhook_definitions WHERE ` + clause)
	if err := r.GetContext(ctx, &def, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, arg)
		}
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	return &def, nil
}

func (s *sqlStore) List(ctx context.Context) ([]*Definition, error) {
	var defs []*Definition
	err := s.pool.Reader().SelectContext(ctx, &defs,
		`SELECT * FROM webhook_definitions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return defs, nil
}

func (s *sqlStore) Update(ctx context.Context, def *Definition) error {
	w := s.pool.Writer()
	query := w.Rebind(`
		UPDATE webhook_definitions
		SET name = ?, path_suffix = ?, prompt_template = ?, secret = ?,
			session_id = ?, enabled = ?
		WHERE id = ?`)
	result, err := w.ExecContext(ctx, query,
		def.Name, def.PathSuffix, def.PromptTemplate, def.Secret,
		def.SessionID, def.Enabled, def.ID,
	)
	if err != nil {
		return fmt.Errorf("update webhook: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, def.ID)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	w := s.pool.Writer()
	result, err := w.ExecContext(ctx, w.Rebind(`DELETE FROM webhook_definitions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *sqlStore) RecordTrigger(ctx context.Context, id string, at time.Time) error {
	w := s.pool.Writer()
	if _, err := w.ExecContext(ctx, w.Rebind(`
		UPDATE webhook_definitions SET trigger_count = trigger_count + 1, last_triggered_at = ?
		WHERE id = ?`), at, id); err != nil {
		return fmt.Errorf("record webhook trigger: %w", err)
	}
	return nil
}
