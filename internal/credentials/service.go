package credentials

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
)

// Service provides validation and business logic for the credential store.
type Service struct {
	store  Store
	logger *logger.Logger
}

// NewService creates a new credentials service.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

var nameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

func (s *Service) validateSet(req *SetCredentialRequest) error {
	req.Name = strings.TrimSpace(req.Name)

	if !nameRegex.MatchString(req.Name) || len(req.Name) > 100 {
		return fmt.Errorf("name must be 1-100 characters of letters, digits, underscore, dot, or dash")
	}
	if req.Value == "" || len(req.Value) > 10000 {
		return fmt.Errorf("value must be 1-10000 characters")
	}
	if req.Type != "" && !ValidTypes[req.Type] {
		return fmt.Errorf("invalid credential_type: %s", req.Type)
	}
	if len(req.Description) > 500 {
		return fmt.Errorf("description must be at most 500 characters")
	}
	return nil
}

// Set validates and stores a credential, replacing any existing value under
// the same name.
func (s *Service) Set(ctx context.Context, req *SetCredentialRequest) (*Credential, error) {
	if err := s.validateSet(req); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	cred, err := s.store.Set(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("set credential: %w", err)
	}
	s.logger.Info("credential stored", zap.String("name", cred.Name))
	return cred, nil
}

// Get retrieves credential metadata.
func (s *Service) Get(ctx context.Context, name string) (*Credential, error) {
	return s.store.Get(ctx, name)
}

// Reveal returns the decrypted credential value.
func (s *Service) Reveal(ctx context.Context, name string) (string, error) {
	return s.store.Reveal(ctx, name)
}

// Delete removes a credential.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info("credential deleted", zap.String("name", name))
	return nil
}

// List returns all credentials without values.
func (s *Service) List(ctx context.Context) ([]*Credential, error) {
	return s.store.List(ctx)
}

// RotateKey re-encrypts every stored credential under the new base64 key.
func (s *Service) RotateKey(ctx context.Context, newKey string) error {
	cipher, err := NewCipher(newKey)
	if err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	if err := s.store.RotateKey(ctx, cipher); err != nil {
		return fmt.Errorf("rotate key: %w", err)
	}
	s.logger.Info("credential key rotated")
	return nil
}
