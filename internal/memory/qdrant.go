package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/radbot/radbot/internal/common/config"
)

// QdrantStore implements VectorStore against a Qdrant collection with
// cosine distance.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore connects to Qdrant using the boot memory config.
func NewQdrantStore(cfg config.MemoryConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: false,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &QdrantStore{client: client, collection: cfg.Collection}, nil
}

// EnsureCollection creates the collection when absent.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// A concurrent boot may have created it first.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// Upsert writes one point; repeating an id replaces the point.
func (s *QdrantStore) Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	converted := make(map[string]*qdrant.Value, len(payload))
	for key, value := range payload {
		v, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("convert payload key %s: %w", key, err)
		}
		converted[key] = v
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: converted,
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

// Query returns the top-k hits by cosine similarity.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, k int, filter *Filter) ([]Result, error) {
	search := &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if qf := buildFilter(filter); qf != nil {
		search.Filter = qf
	}

	response, err := s.client.GetPointsClient().Search(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	results := make([]Result, 0, len(response.Result))
	for _, point := range response.Result {
		results = append(results, Result{
			ID:      pointID(point.Id),
			Payload: decodePayload(point.Payload),
			Score:   point.Score,
		})
	}
	return results, nil
}

// Delete removes one point by id.
func (s *QdrantStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{qdrant.NewID(id)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete point %s: %w", id, err)
	}
	return nil
}

// Ping checks that the Qdrant server is reachable.
func (s *QdrantStore) Ping(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	return err
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func buildFilter(filter *Filter) *qdrant.Filter {
	if filter == nil {
		return nil
	}

	var must []*qdrant.Condition
	if filter.SourceAgent != "" {
		must = append(must, qdrant.NewMatch(PayloadSourceAgent, filter.SourceAgent))
	}

	var tsRange qdrant.Range
	ranged := false
	if !filter.After.IsZero() {
		gte := float64(filter.After.UnixMilli())
		tsRange.Gte = &gte
		ranged = true
	}
	if !filter.Before.IsZero() {
		lte := float64(filter.Before.UnixMilli())
		tsRange.Lte = &lte
		ranged = true
	}
	if ranged {
		must = append(must, qdrant.NewRange(PayloadTimestamp, &tsRange))
	}

	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

func decodePayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		switch v := value.Kind.(type) {
		case *qdrant.Value_StringValue:
			out[key] = v.StringValue
		case *qdrant.Value_IntegerValue:
			out[key] = v.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[key] = v.DoubleValue
		case *qdrant.Value_BoolValue:
			out[key] = v.BoolValue
		default:
			out[key] = value
		}
	}
	return out
}
