package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/radbot/radbot/internal/db"
)

const previewLength = 80

type sqlStore struct {
	pool *db.Pool
}

var _ Store = (*sqlStore)(nil)

// NewStore creates the SQL-backed session store and initializes its schema.
func NewStore(pool *db.Pool) (Store, error) {
	s := &sqlStore{pool: pool}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("session schema init: %w", err)
	}
	return s, nil
}

func (s *sqlStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		created_at      TIMESTAMP NOT NULL,
		last_message_at TIMESTAMP,
		preview         TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS chat_messages (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role       TEXT NOT NULL,
		agent_name TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL,
		timestamp  TIMESTAMP NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_session_ts
		ON chat_messages(session_id, timestamp, id);
	CREATE TABLE IF NOT EXISTS pending_results (
		id         TEXT PRIMARY KEY,
		origin     TEXT NOT NULL,
		session_id TEXT NOT NULL,
		prompt     TEXT NOT NULL,
		response   TEXT,
		delivered  INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pending_results_session
		ON pending_results(session_id, delivered, created_at);
	`
	_, err := s.pool.Writer().Exec(schema)
	return err
}

func (s *sqlStore) CreateSession(ctx context.Context, name string) (*Session, error) {
	return s.CreateSessionWithID(ctx, uuid.New().String(), name)
}

func (s *sqlStore) CreateSessionWithID(ctx context.Context, id, name string) (*Session, error) {
	sess := &Session{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	w := s.pool.Writer()
	query := w.Rebind(`INSERT INTO sessions (id, name, created_at, preview) VALUES (?, ?, ?, '')`)
	if _, err := w.ExecContext(ctx, query, sess.ID, sess.Name, sess.CreatedAt); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *sqlStore) GetSession(ctx context.Context, id string) (*Session, error) {
	r := s.pool.Reader()
	var sess Session
	query := r.Rebind(`SELECT id, name, created_at, last_message_at, preview FROM sessions WHERE id = ?`)
	if err := r.GetContext(ctx, &sess, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *sqlStore) ListSessions(ctx context.Context) ([]*Session, error) {
	var sessions []*Session
	err := s.pool.Reader().SelectContext(ctx, &sessions, `
		SELECT id, name, created_at, last_message_at, preview
		FROM sessions
		ORDER BY COALESCE(last_message_at, created_at) DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *sqlStore) RenameSession(ctx context.Context, id, name string) (*Session, error) {
	w := s.pool.Writer()
	query := w.Rebind(`UPDATE sessions SET name = ? WHERE id = ?`)
	result, err := w.ExecContext(ctx, query, name, id)
	if err != nil {
		return nil, fmt.Errorf("rename session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.GetSession(ctx, id)
}

func (s *sqlStore) DeleteSession(ctx context.Context, id string) error {
	w := s.pool.Writer()
	tx, err := w.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Explicit deletes rather than relying on FK cascade, which SQLite only
	// enforces when foreign_keys is on.
	for _, q := range []string{
		`DELETE FROM chat_messages WHERE session_id = ?`,
		`DELETE FROM pending_results WHERE session_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), id); err != nil {
			return fmt.Errorf("delete session data: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

func (s *sqlStore) AppendMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil || msg.Metadata == nil {
		metadataJSON = []byte("{}")
	}

	w := s.pool.Writer()
	tx, err := w.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append message: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := tx.Rebind(`
		INSERT INTO chat_messages (id, session_id, role, agent_name, content, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert,
		msg.ID, msg.SessionID, string(msg.Role), msg.AgentName, msg.Content,
		msg.Timestamp, string(metadataJSON),
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	update := tx.Rebind(`UPDATE sessions SET last_message_at = ?, preview = ? WHERE id = ?`)
	result, err := tx.ExecContext(ctx, update, msg.Timestamp, preview(msg.Content), msg.SessionID)
	if err != nil {
		return fmt.Errorf("update session activity: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, msg.SessionID)
	}
	return tx.Commit()
}

func (s *sqlStore) Messages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error) {
	r := s.pool.Reader()

	query := `
		SELECT id, session_id, role, agent_name, content, timestamp, metadata
		FROM chat_messages WHERE session_id = ?
		ORDER BY timestamp DESC, id DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []messageRow
	if err := r.SelectContext(ctx, &rows, r.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	// Flip the newest-first page back to ascending order.
	msgs := make([]*ChatMessage, len(rows))
	for i, row := range rows {
		msgs[len(rows)-1-i] = row.toMessage()
	}
	return msgs, nil
}

func (s *sqlStore) MessagesSince(ctx context.Context, sessionID string, since time.Time) ([]*ChatMessage, error) {
	r := s.pool.Reader()
	var rows []messageRow
	query := r.Rebind(`
		SELECT id, session_id, role, agent_name, content, timestamp, metadata
		FROM chat_messages WHERE session_id = ? AND timestamp > ?
		ORDER BY timestamp, id`)
	if err := r.SelectContext(ctx, &rows, query, sessionID, since); err != nil {
		return nil, fmt.Errorf("load messages since: %w", err)
	}
	msgs := make([]*ChatMessage, len(rows))
	for i, row := range rows {
		msgs[i] = row.toMessage()
	}
	return msgs, nil
}

func (s *sqlStore) CreatePendingResult(ctx context.Context, result *PendingResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	w := s.pool.Writer()
	query := w.Rebind(`
		INSERT INTO pending_results (id, origin, session_id, prompt, response, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`)
	if _, err := w.ExecContext(ctx, query,
		result.ID, string(result.Origin), result.SessionID, result.Prompt,
		result.Response, result.CreatedAt,
	); err != nil {
		return fmt.Errorf("create pending result: %w", err)
	}
	return nil
}

func (s *sqlStore) DeletePendingResult(ctx context.Context, id string) error {
	w := s.pool.Writer()
	if _, err := w.ExecContext(ctx, w.Rebind(`DELETE FROM pending_results WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete pending result: %w", err)
	}
	return nil
}

func (s *sqlStore) CompletePendingResult(ctx context.Context, id, response string) error {
	w := s.pool.Writer()
	query := w.Rebind(`UPDATE pending_results SET response = ? WHERE id = ?`)
	if _, err := w.ExecContext(ctx, query, response, id); err != nil {
		return fmt.Errorf("complete pending result: %w", err)
	}
	return nil
}

func (s *sqlStore) UndeliveredResults(ctx context.Context, sessionID string) ([]*PendingResult, error) {
	r := s.pool.Reader()
	var rows []pendingRow
	query := r.Rebind(`
		SELECT id, origin, session_id, prompt, response, delivered, created_at
		FROM pending_results
		WHERE session_id = ? AND delivered = 0 AND response IS NOT NULL
		ORDER BY created_at, id`)
	if err := r.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("load undelivered results: %w", err)
	}
	results := make([]*PendingResult, len(rows))
	for i, row := range rows {
		results[i] = row.toResult()
	}
	return results, nil
}

func (s *sqlStore) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	w := s.pool.Writer()
	query, args, err := sqlx.In(`UPDATE pending_results SET delivered = 1 WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if _, err := w.ExecContext(ctx, w.Rebind(query), args...); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// messageRow is the DB scan target for chat messages.
type messageRow struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	Role      string    `db:"role"`
	AgentName string    `db:"agent_name"`
	Content   string    `db:"content"`
	Timestamp time.Time `db:"timestamp"`
	Metadata  string    `db:"metadata"`
}

func (r *messageRow) toMessage() *ChatMessage {
	msg := &ChatMessage{
		ID:        r.ID,
		SessionID: r.SessionID,
		Role:      Role(r.Role),
		AgentName: r.AgentName,
		Content:   r.Content,
		Timestamp: r.Timestamp,
	}
	if r.Metadata != "" && r.Metadata != "{}" {
		_ = json.Unmarshal([]byte(r.Metadata), &msg.Metadata)
	}
	return msg
}

// pendingRow is the DB scan target for pending results.
type pendingRow struct {
	ID        string         `db:"id"`
	Origin    string         `db:"origin"`
	SessionID string         `db:"session_id"`
	Prompt    string         `db:"prompt"`
	Response  sql.NullString `db:"response"`
	Delivered bool           `db:"delivered"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *pendingRow) toResult() *PendingResult {
	result := &PendingResult{
		ID:        r.ID,
		Origin:    Origin(r.Origin),
		SessionID: r.SessionID,
		Prompt:    r.Prompt,
		Delivered: r.Delivered,
		CreatedAt: r.CreatedAt,
	}
	if r.Response.Valid {
		response := r.Response.String
		result.Response = &response
	}
	return result
}

// preview derives the session list preview from message content.
func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "…"
}
