package credentials

import "time"

// CredentialType groups credentials by purpose.
type CredentialType string

const (
	TypeAPIKey   CredentialType = "api_key"
	TypeToken    CredentialType = "token"
	TypePassword CredentialType = "password"
	TypeCustom   CredentialType = "custom"
)

// ValidTypes is the set of allowed credential types.
var ValidTypes = map[CredentialType]bool{
	TypeAPIKey:   true,
	TypeToken:    true,
	TypePassword: true,
	TypeCustom:   true,
}

// Credential is stored credential metadata. The value never appears here;
// it only leaves the store through Reveal.
type Credential struct {
	Name        string         `json:"name" db:"name"`
	Type        CredentialType `json:"credential_type" db:"credential_type"`
	Description string         `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// SetCredentialRequest is the request body for creating or replacing a
// credential. Setting an existing name overwrites its value.
type SetCredentialRequest struct {
	Name        string         `json:"name"`
	Value       string         `json:"value"`
	Type        CredentialType `json:"credential_type,omitempty"`
	Description string         `json:"description,omitempty"`
}

// RotateKeyRequest is the request body for re-encrypting the store under a
// new key.
type RotateKeyRequest struct {
	NewKey string `json:"new_key"`
}
