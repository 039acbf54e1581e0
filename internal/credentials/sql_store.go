package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/radbot/radbot/internal/db"
	"github.com/radbot/radbot/internal/db/dialect"
)

type sqlStore struct {
	pool *db.Pool

	mu     sync.RWMutex
	cipher *Cipher
}

var _ Store = (*sqlStore)(nil)

// NewStore creates the SQL-backed credential store and initializes its
// schema. The nonce travels in the salt column.
func NewStore(pool *db.Pool, cipher *Cipher) (Store, error) {
	s := &sqlStore{pool: pool, cipher: cipher}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("credentials schema init: %w", err)
	}
	return s, nil
}

func (s *sqlStore) initSchema() error {
	blob := dialect.Blob(s.pool.DriverName())
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS credentials (
		name            TEXT PRIMARY KEY,
		encrypted_value %s NOT NULL,
		salt            %s NOT NULL,
		credential_type TEXT NOT NULL DEFAULT 'custom',
		description     TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_credentials_type ON credentials(credential_type);
	`, blob, blob)
	_, err := s.pool.Writer().Exec(schema)
	return err
}

func (s *sqlStore) currentCipher() *Cipher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cipher
}

func (s *sqlStore) Set(ctx context.Context, req *SetCredentialRequest) (*Credential, error) {
	now := time.Now().UTC()

	credType := req.Type
	if credType == "" {
		credType = TypeCustom
	}

	ciphertext, nonce, err := s.currentCipher().Encrypt([]byte(req.Value))
	if err != nil {
		return nil, fmt.Errorf("encrypt credential: %w", err)
	}

	w := s.pool.Writer()
	query := w.Rebind(`
		INSERT INTO credentials (name, encrypted_value, salt, credential_type, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		` + dialect.UpsertConflict("name") + `
			encrypted_value = excluded.encrypted_value,
			salt            = excluded.salt,
			credential_type = excluded.credential_type,
			description     = excluded.description,
			updated_at      = excluded.updated_at`)
	if _, err := w.ExecContext(ctx, query,
		req.Name, ciphertext, nonce, string(credType), req.Description, now, now,
	); err != nil {
		return nil, fmt.Errorf("upsert credential: %w", err)
	}

	return s.Get(ctx, req.Name)
}

func (s *sqlStore) Get(ctx context.Context, name string) (*Credential, error) {
	r := s.pool.Reader()
	var cred Credential
	query := r.Rebind(`
		SELECT name, credential_type, description, created_at, updated_at
		FROM credentials WHERE name = ?`)
	if err := r.GetContext(ctx, &cred, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &cred, nil
}

func (s *sqlStore) Reveal(ctx context.Context, name string) (string, error) {
	r := s.pool.Reader()
	var ciphertext, nonce []byte
	query := r.Rebind(`SELECT encrypted_value, salt FROM credentials WHERE name = ?`)
	if err := r.QueryRowContext(ctx, query, name).Scan(&ciphertext, &nonce); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("reveal credential: %w", err)
	}

	plaintext, err := s.currentCipher().Decrypt(ciphertext, nonce)
	if err != nil {
		return "", fmt.Errorf("decrypt credential %s: %w", name, err)
	}
	return string(plaintext), nil
}

func (s *sqlStore) Delete(ctx context.Context, name string) error {
	w := s.pool.Writer()
	query := w.Rebind(`DELETE FROM credentials WHERE name = ?`)
	result, err := w.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context) ([]*Credential, error) {
	var creds []*Credential
	err := s.pool.Reader().SelectContext(ctx, &creds, `
		SELECT name, credential_type, description, created_at, updated_at
		FROM credentials ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return creds, nil
}

func (s *sqlStore) RotateKey(ctx context.Context, newCipher *Cipher) error {
	// Hold the write lock for the whole rotation so no Set races the
	// re-encryption with the old key.
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cipher
	w := s.pool.Writer()

	tx, err := w.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	type row struct {
		Name           string `db:"name"`
		EncryptedValue []byte `db:"encrypted_value"`
		Salt           []byte `db:"salt"`
	}
	var rows []row
	if err := tx.SelectContext(ctx, &rows, `SELECT name, encrypted_value, salt FROM credentials`); err != nil {
		return fmt.Errorf("load credentials for rotation: %w", err)
	}

	update := tx.Rebind(`UPDATE credentials SET encrypted_value = ?, salt = ?, updated_at = ? WHERE name = ?`)
	now := time.Now().UTC()
	for _, r := range rows {
		plaintext, err := old.Decrypt(r.EncryptedValue, r.Salt)
		if err != nil {
			return fmt.Errorf("decrypt %s during rotation: %w", r.Name, err)
		}
		ciphertext, nonce, err := newCipher.Encrypt(plaintext)
		if err != nil {
			return fmt.Errorf("re-encrypt %s during rotation: %w", r.Name, err)
		}
		if _, err := tx.ExecContext(ctx, update, ciphertext, nonce, now, r.Name); err != nil {
			return fmt.Errorf("store %s during rotation: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotation: %w", err)
	}

	s.cipher = newCipher
	return nil
}
