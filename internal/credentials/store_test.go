package credentials

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radbot/radbot/internal/db"
)

func setupTestStore(t *testing.T) (Store, *Cipher) {
	t.Helper()

	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	key, err := GenerateKey()
	require.NoError(t, err)
	cipher, err := NewCipher(key)
	require.NoError(t, err)

	store, err := NewStore(db.NewPool(conn, conn), cipher)
	require.NoError(t, err)
	return store, cipher
}

func TestCredentialRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	cred, err := store.Set(ctx, &SetCredentialRequest{
		Name:        "openai_api_key",
		Value:       "sk-test-123",
		Type:        TypeAPIKey,
		Description: "hosted model provider",
	})
	require.NoError(t, err)
	assert.Equal(t, "openai_api_key", cred.Name)
	assert.Equal(t, TypeAPIKey, cred.Type)

	value, err := store.Reveal(ctx, "openai_api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", value)
}

func TestCredentialMetadataNeverExposesValue(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, &SetCredentialRequest{Name: "hue_token", Value: "secret"})
	require.NoError(t, err)

	cred, err := store.Get(ctx, "hue_token")
	require.NoError(t, err)
	assert.Equal(t, TypeCustom, cred.Type)
	assert.False(t, cred.CreatedAt.IsZero())
}

func TestCredentialSetOverwrites(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, &SetCredentialRequest{Name: "imap_password", Value: "first"})
	require.NoError(t, err)
	_, err = store.Set(ctx, &SetCredentialRequest{Name: "imap_password", Value: "second"})
	require.NoError(t, err)

	value, err := store.Reveal(ctx, "imap_password")
	require.NoError(t, err)
	assert.Equal(t, "second", value)

	creds, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestCredentialNotFound(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Reveal(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Delete(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, &SetCredentialRequest{Name: "temp", Value: "v"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "temp"))

	_, err = store.Get(ctx, "temp")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialListOrderedByName(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zulu", "alpha", "mike"} {
		_, err := store.Set(ctx, &SetCredentialRequest{Name: name, Value: "v"})
		require.NoError(t, err)
	}

	creds, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 3)
	assert.Equal(t, "alpha", creds[0].Name)
	assert.Equal(t, "mike", creds[1].Name)
	assert.Equal(t, "zulu", creds[2].Name)
}

func TestRotateKeyReencryptsAllRows(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	values := map[string]string{
		"openai_api_key": "sk-1",
		"hue_token":      "bridge-2",
		"imap_password":  "mail-3",
	}
	for name, value := range values {
		_, err := store.Set(ctx, &SetCredentialRequest{Name: name, Value: value})
		require.NoError(t, err)
	}

	newKey, err := GenerateKey()
	require.NoError(t, err)
	newCipher, err := NewCipher(newKey)
	require.NoError(t, err)

	require.NoError(t, store.RotateKey(ctx, newCipher))

	// Every value still decrypts after rotation.
	for name, want := range values {
		got, err := store.Reveal(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// And new writes use the new key.
	_, err = store.Set(ctx, &SetCredentialRequest{Name: "post_rotate", Value: "fresh"})
	require.NoError(t, err)
	got, err := store.Reveal(ctx, "post_rotate")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}
