package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
)

// ScopeGlobal disables source_agent filtering on search.
const ScopeGlobal = "global"

const defaultTopK = 5

// Item is one retrieved memory.
type Item struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	SourceAgent string    `json:"source_agent"`
	MemoryType  string    `json:"memory_type"`
	Timestamp   time.Time `json:"timestamp"`
	Score       float32   `json:"score"`
}

// Service is the only consumer of the vector store. Failures surface as
// errors to the calling tool; they never abort a turn.
type Service struct {
	embedder Embedder
	vectors  VectorStore
	logger   *logger.Logger
}

// NewService wires the embedder and vector store together and makes sure the
// collection exists.
func NewService(ctx context.Context, embedder Embedder, vectors VectorStore, log *logger.Logger) (*Service, error) {
	if err := vectors.EnsureCollection(ctx, embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("ensure memory collection: %w", err)
	}
	return &Service{embedder: embedder, vectors: vectors, logger: log}, nil
}

// Store embeds text and writes it tagged with the caller's scope and a
// memory type. Returns the new item id.
func (s *Service) Store(ctx context.Context, text, sourceAgent, memoryType string) (string, error) {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed: %w", err)
	}

	id := uuid.New().String()
	payload := map[string]any{
		PayloadText:        text,
		PayloadSourceAgent: sourceAgent,
		PayloadMemoryType:  memoryType,
		PayloadTimestamp:   time.Now().UTC().UnixMilli(),
	}
	if err := s.vectors.Upsert(ctx, id, vector, payload); err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}

	s.logger.Debug("memory stored",
		zap.String("id", id),
		zap.String("source_agent", sourceAgent),
		zap.String("memory_type", memoryType))
	return id, nil
}

// Search embeds the query and returns the top-k items for the given scope.
// ScopeGlobal (or empty scope) searches unfiltered. Results are ordered by
// score descending, id ascending on ties, so retrieval is deterministic.
func (s *Service) Search(ctx context.Context, query, scope string, k int) ([]Item, error) {
	return s.SearchRange(ctx, query, scope, k, time.Time{}, time.Time{})
}

// SearchRange is Search with an optional timestamp window.
func (s *Service) SearchRange(ctx context.Context, query, scope string, k int, after, before time.Time) ([]Item, error) {
	if k <= 0 {
		k = defaultTopK
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var filter *Filter
	if (scope != "" && scope != ScopeGlobal) || !after.IsZero() || !before.IsZero() {
		filter = &Filter{After: after, Before: before}
		if scope != "" && scope != ScopeGlobal {
			filter.SourceAgent = scope
		}
	}

	results, err := s.vectors.Query(ctx, vector, k, filter)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	items := make([]Item, 0, len(results))
	for _, r := range results {
		items = append(items, itemFromResult(r))
	}
	return items, nil
}

// Forget removes one memory by id.
func (s *Service) Forget(ctx context.Context, id string) error {
	return s.vectors.Delete(ctx, id)
}

func itemFromResult(r Result) Item {
	item := Item{ID: r.ID, Score: r.Score}
	if v, ok := r.Payload[PayloadText].(string); ok {
		item.Text = v
	}
	if v, ok := r.Payload[PayloadSourceAgent].(string); ok {
		item.SourceAgent = v
	}
	if v, ok := r.Payload[PayloadMemoryType].(string); ok {
		item.MemoryType = v
	}
	switch v := r.Payload[PayloadTimestamp].(type) {
	case int64:
		item.Timestamp = time.UnixMilli(v).UTC()
	case float64:
		item.Timestamp = time.UnixMilli(int64(v)).UTC()
	}
	return item
}
