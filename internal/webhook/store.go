package webhook

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a webhook definition does not exist.
var ErrNotFound = errors.New("webhook not found")

// Store abstracts webhook-definition persistence.
type Store interface {
	// Create inserts a definition. Name and path suffix are unique.
	Create(ctx context.Context, def *Definition) error

	// Get retrieves a definition by id.
	Get(ctx context.Context, id string) (*Definition, error)

	// GetBySuffix retrieves a definition by its path suffix.
	GetBySuffix(ctx context.Context, suffix string) (*Definition, error)

	// List returns all definitions ordered by name.
	List(ctx context.Context) ([]*Definition, error)

	// Update persists a fully populated definition row.
	Update(ctx context.Context, def *Definition) error

	// Delete removes a definition.
	Delete(ctx context.Context, id string) error

	// RecordTrigger bumps trigger_count and sets last_triggered_at. Called
	// only for accepted (2xx) dispatches.
	RecordTrigger(ctx context.Context, id string, at time.Time) error
}
