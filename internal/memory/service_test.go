package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radbot/radbot/internal/common/logger"
)

// fakeEmbedder maps text onto a small deterministic character-histogram
// vector, so identical texts are identical vectors.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[(int(r)+i)%8]++
	}
	return vec, nil
}

func (fakeEmbedder) Dimension() int { return 8 }

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding model offline")
}

func (failingEmbedder) Dimension() int { return 8 }

type storedPoint struct {
	vector  []float32
	payload map[string]any
}

// fakeVectorStore is an in-memory cosine-similarity store.
type fakeVectorStore struct {
	mu     sync.Mutex
	points map[string]storedPoint
	err    error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: make(map[string]storedPoint)}
}

func (f *fakeVectorStore) EnsureCollection(context.Context, int) error { return f.err }

func (f *fakeVectorStore) Upsert(_ context.Context, id string, vector []float32, payload map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points[id] = storedPoint{vector: vector, payload: payload}
	return nil
}

func (f *fakeVectorStore) Query(_ context.Context, vector []float32, k int, filter *Filter) ([]Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var results []Result
	for id, p := range f.points {
		if filter != nil && filter.SourceAgent != "" {
			if p.payload[PayloadSourceAgent] != filter.SourceAgent {
				continue
			}
		}
		if filter != nil {
			ts, _ := p.payload[PayloadTimestamp].(int64)
			if !filter.After.IsZero() && ts < filter.After.UnixMilli() {
				continue
			}
			if !filter.Before.IsZero() && ts > filter.Before.UnixMilli() {
				continue
			}
		}
		results = append(results, Result{ID: id, Payload: p.payload, Score: cosine(vector, p.vector)})
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (f *fakeVectorStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.points, id)
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func setupService(t *testing.T) (*Service, *fakeVectorStore) {
	t.Helper()
	store := newFakeVectorStore()
	svc, err := NewService(context.Background(), fakeEmbedder{}, store, logger.Default())
	require.NoError(t, err)
	return svc, store
}

func TestStoreThenSearchRoundTrip(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, "the wifi password is hunter2", "home", "fact")
	require.NoError(t, err)
	_, err = svc.Store(ctx, "jazz concert on friday", "comms", "event")
	require.NoError(t, err)

	items, err := svc.Search(ctx, "the wifi password is hunter2", ScopeGlobal, 2)
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "the wifi password is hunter2", items[0].Text)
	assert.Equal(t, "home", items[0].SourceAgent)
	assert.Equal(t, "fact", items[0].MemoryType)
	assert.InDelta(t, 1.0, float64(items[0].Score), 1e-6)
}

func TestSearchScopeFiltersBySourceAgent(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, "remember the milk", "home", "todo")
	require.NoError(t, err)
	_, err = svc.Store(ctx, "remember the milk", "research", "todo")
	require.NoError(t, err)

	items, err := svc.Search(ctx, "remember the milk", "home", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "home", items[0].SourceAgent)

	items, err = svc.Search(ctx, "remember the milk", ScopeGlobal, 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSearchOrderIsDeterministicOnTies(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	// Same text twice gives identical vectors and tied scores.
	vec, _ := fakeEmbedder{}.Embed(ctx, "tied")
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, store.Upsert(ctx, id, vec, map[string]any{
			PayloadText: "tied", PayloadSourceAgent: "home",
			PayloadMemoryType: "fact", PayloadTimestamp: int64(0),
		}))
	}

	for i := 0; i < 5; i++ {
		items, err := svc.Search(ctx, "tied", ScopeGlobal, 10)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{items[0].ID, items[1].ID, items[2].ID})
	}
}

func TestSearchTimeRange(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	vec, _ := fakeEmbedder{}.Embed(ctx, "note")
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, "old", vec, map[string]any{
		PayloadText: "note", PayloadSourceAgent: "home",
		PayloadMemoryType: "fact", PayloadTimestamp: old.UnixMilli(),
	}))
	require.NoError(t, store.Upsert(ctx, "recent", vec, map[string]any{
		PayloadText: "note", PayloadSourceAgent: "home",
		PayloadMemoryType: "fact", PayloadTimestamp: recent.UnixMilli(),
	}))

	items, err := svc.SearchRange(ctx, "note", ScopeGlobal, 10,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "recent", items[0].ID)
	assert.Equal(t, recent, items[0].Timestamp)
}

func TestVectorStoreFailureSurfacesAsError(t *testing.T) {
	store := newFakeVectorStore()
	svc, err := NewService(context.Background(), fakeEmbedder{}, store, logger.Default())
	require.NoError(t, err)

	store.err = fmt.Errorf("qdrant unreachable")

	_, err = svc.Store(context.Background(), "x", "home", "fact")
	assert.Error(t, err)

	_, err = svc.Search(context.Background(), "x", ScopeGlobal, 3)
	assert.Error(t, err)
}

func TestEmbedderFailureSurfacesAsError(t *testing.T) {
	store := newFakeVectorStore()
	svc, err := NewService(context.Background(), failingEmbedder{}, store, logger.Default())
	require.NoError(t, err)

	_, err = svc.Store(context.Background(), "x", "home", "fact")
	assert.Error(t, err)
}
