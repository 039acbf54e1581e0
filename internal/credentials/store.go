// Package credentials stores named secrets encrypted at rest. Other
// subsystems (config resolver, tool clients) look values up by name at use
// time so rotations take effect without restarts.
package credentials

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no credential exists under the given name.
var ErrNotFound = errors.New("credential not found")

// Store abstracts credential persistence. Implementations encrypt values
// before they touch the database.
type Store interface {
	// Set creates or replaces a credential by name.
	Set(ctx context.Context, req *SetCredentialRequest) (*Credential, error)

	// Get retrieves credential metadata (without the value).
	Get(ctx context.Context, name string) (*Credential, error)

	// Reveal retrieves the decrypted value of a credential.
	Reveal(ctx context.Context, name string) (string, error)

	// Delete permanently removes a credential.
	Delete(ctx context.Context, name string) error

	// List returns all credentials without values, ordered by name.
	List(ctx context.Context) ([]*Credential, error)

	// RotateKey re-encrypts every stored value under newCipher. All rows
	// move in one transaction; on error the old key remains authoritative.
	RotateKey(ctx context.Context, newCipher *Cipher) error
}
