// Package session persists conversations, their messages, and the pending
// results produced by scheduler and webhook triggers.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Store abstracts session persistence.
type Store interface {
	// CreateSession creates a new session with a fresh id.
	CreateSession(ctx context.Context, name string) (*Session, error)

	// CreateSessionWithID creates a session under a well-known id, as used
	// by scheduler and webhook target sessions.
	CreateSessionWithID(ctx context.Context, id, name string) (*Session, error)

	// GetSession retrieves a session by id.
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListSessions returns all sessions, most recently active first.
	ListSessions(ctx context.Context) ([]*Session, error)

	// RenameSession updates a session's name.
	RenameSession(ctx context.Context, id, name string) (*Session, error)

	// DeleteSession removes a session with its messages and pending results.
	DeleteSession(ctx context.Context, id string) error

	// AppendMessage durably writes a message and updates the session's
	// last_message_at and preview. Missing id/timestamp are filled in.
	AppendMessage(ctx context.Context, msg *ChatMessage) error

	// Messages returns the last limit messages in ascending
	// (timestamp, id) order. limit <= 0 means no limit.
	Messages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error)

	// MessagesSince returns messages with timestamp strictly after since, in
	// ascending (timestamp, id) order.
	MessagesSince(ctx context.Context, sessionID string, since time.Time) ([]*ChatMessage, error)

	// CreatePendingResult records a fired trigger awaiting its response.
	CreatePendingResult(ctx context.Context, result *PendingResult) error

	// CompletePendingResult stores the response for a pending result.
	CompletePendingResult(ctx context.Context, id, response string) error

	// DeletePendingResult removes a pending result that will never complete,
	// such as a trigger rejected by a full queue.
	DeletePendingResult(ctx context.Context, id string) error

	// UndeliveredResults returns completed, undelivered results for a
	// session in creation order.
	UndeliveredResults(ctx context.Context, sessionID string) ([]*PendingResult, error)

	// MarkDelivered flags the given pending results as consumed.
	MarkDelivered(ctx context.Context, ids []string) error
}
