package memory

import (
	"context"
	"time"
)

// Payload keys carried on every stored memory item.
const (
	PayloadText        = "text"
	PayloadSourceAgent = "source_agent"
	PayloadMemoryType  = "memory_type"
	PayloadTimestamp   = "timestamp" // epoch milliseconds
)

// Filter restricts a query. A nil Filter matches everything.
type Filter struct {
	// SourceAgent filters on payload equality; empty means no filter.
	SourceAgent string

	// After/Before bound the item timestamp. Zero values are open ends.
	After  time.Time
	Before time.Time
}

// Result is one query hit. Score is cosine similarity.
type Result struct {
	ID      string
	Payload map[string]any
	Score   float32
}

// VectorStore is the persistence contract for memory items. Upsert is
// idempotent on id.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error
	Query(ctx context.Context, vector []float32, k int, filter *Filter) ([]Result, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
