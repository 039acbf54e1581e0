package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
)

const defaultHistoryLimit = 50

// Service provides validation and business logic over the session store.
type Service struct {
	store  Store
	logger *logger.Logger
}

// NewService creates a new session service.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// Create creates a session, naming it after the creation time when no name
// is given.
func (s *Service) Create(ctx context.Context, name string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Chat " + time.Now().UTC().Format("Jan 2 15:04")
	}
	if len(name) > 200 {
		return nil, fmt.Errorf("validation: name must be at most 200 characters")
	}

	sess, err := s.store.CreateSession(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session created", zap.String("session_id", sess.ID))
	return sess, nil
}

// Get retrieves a session by id.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.GetSession(ctx, id)
}

// GetOrCreate returns the session with the given id, creating it when
// absent. Scheduler and webhook triggers target well-known session ids that
// may not exist yet.
func (s *Service) GetOrCreate(ctx context.Context, id, name string) (*Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err == nil {
		return sess, nil
	}
	if name == "" {
		name = id
	}
	return s.store.CreateSessionWithID(ctx, id, name)
}

// List returns all sessions, most recently active first.
func (s *Service) List(ctx context.Context) ([]*Session, error) {
	return s.store.ListSessions(ctx)
}

// Rename updates a session's name.
func (s *Service) Rename(ctx context.Context, id, name string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return nil, fmt.Errorf("validation: name must be 1-200 characters")
	}
	return s.store.RenameSession(ctx, id, name)
}

// Delete removes a session and its data.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// Append validates and durably writes a chat message.
func (s *Service) Append(ctx context.Context, msg *ChatMessage) error {
	if !ValidRoles[msg.Role] {
		return fmt.Errorf("validation: invalid role %q", msg.Role)
	}
	if msg.SessionID == "" {
		return fmt.Errorf("validation: session_id is required")
	}
	return s.store.AppendMessage(ctx, msg)
}

// History returns the last limit messages in ascending order.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.Messages(ctx, sessionID, limit)
}

// Since returns messages newer than the given timestamp in ascending order.
func (s *Service) Since(ctx context.Context, sessionID string, since time.Time) ([]*ChatMessage, error) {
	return s.store.MessagesSince(ctx, sessionID, since)
}

// Store exposes the underlying store for the trigger pipeline.
func (s *Service) Store() Store {
	return s.store
}
