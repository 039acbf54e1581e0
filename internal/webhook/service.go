package webhook

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/radbot/radbot/internal/common/logger"
)

var suffixPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)

// Service validates webhook-definition writes.
type Service struct {
	store  Store
	logger *logger.Logger
}

// NewService creates a webhook service.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// Create validates and stores a definition.
func (s *Service) Create(ctx context.Context, req *CreateDefinitionRequest) (*Definition, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 200 {
		return nil, fmt.Errorf("validation: name must be 1-200 characters")
	}
	if !suffixPattern.MatchString(req.PathSuffix) {
		return nil, fmt.Errorf("validation: path_suffix must be URL-safe (letters, digits, - and _)")
	}
	if strings.TrimSpace(req.PromptTemplate) == "" {
		return nil, fmt.Errorf("validation: prompt_template is required")
	}

	def := &Definition{
		Name:           req.Name,
		PathSuffix:     req.PathSuffix,
		PromptTemplate: req.PromptTemplate,
		Secret:         req.Secret,
		SessionID:      req.SessionID,
		Enabled:        true,
	}
	if err := s.store.Create(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, req *UpdateDefinitionRequest) (*Definition, error) {
	def, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" || len(trimmed) > 200 {
			return nil, fmt.Errorf("validation: name must be 1-200 characters")
		}
		def.Name = trimmed
	}
	if req.PathSuffix != nil {
		if !suffixPattern.MatchString(*req.PathSuffix) {
			return nil, fmt.Errorf("validation: path_suffix must be URL-safe (letters, digits, - and _)")
		}
		def.PathSuffix = *req.PathSuffix
	}
	if req.PromptTemplate != nil {
		if strings.TrimSpace(*req.PromptTemplate) == "" {
			return nil, fmt.Errorf("validation: prompt_template is required")
		}
		def.PromptTemplate = *req.PromptTemplate
	}
	if req.Secret != nil {
		def.Secret = *req.Secret
	}
	if req.SessionID != nil {
		def.SessionID = *req.SessionID
	}
	if req.Enabled != nil {
		def.Enabled = *req.Enabled
	}

	if err := s.store.Update(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// Delete removes a definition.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Get returns one definition.
func (s *Service) Get(ctx context.Context, id string) (*Definition, error) {
	return s.store.Get(ctx, id)
}

// List returns all definitions.
func (s *Service) List(ctx context.Context) ([]*Definition, error) {
	return s.store.List(ctx)
}
