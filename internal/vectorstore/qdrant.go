package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

const (
	// DefaultCollection holds the passage points.
	DefaultCollection = "passages"

	// Vector field names for hybrid search
	denseVectorName  = "dense"
	sparseVectorName = "sparse"

	passageIDField = "passage_id"
	contentField   = "content"
)

// QdrantStore implements VectorStore using Qdrant
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	hybrid     bool
}

// NewQdrantStore creates a new Qdrant vector store client
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantStore(ctx context.Context, url, collection string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	if collection == "" {
		collection = DefaultCollection
	}
	return &QdrantStore{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// HealthCheck reports whether Qdrant answers.
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// EnsureCollection creates the passage collection unless it exists
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int, hybrid bool) error {
	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return err
	}
	s.hybrid = hybrid
	if exists {
		return nil
	}

	create := &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	}
	if hybrid {
		create.VectorsConfig = qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			},
		})
		create.SparseVectorsConfig = qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {}, // Use default sparse vector config
		})
	}

	if err := s.client.CreateCollection(ctx, create); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// DeleteCollection drops the passage collection
func (s *QdrantStore) DeleteCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// CollectionExists checks if the passage collection exists
func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// Upsert inserts or updates passages. Passages with a sparse vector are stored with named
// vectors and need a hybrid collection.
func (s *QdrantStore) Upsert(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(passages))
	for i, p := range passages {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(p.ID)),
			Payload: payloadOf(p),
			Vectors: vectorsOf(p),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func payloadOf(p Passage) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		passageIDField: qdrant.NewValueString(p.ID),
		contentField:   qdrant.NewValueString(p.Content),
	}
	for k, v := range p.Fields {
		if k == passageIDField || k == contentField {
			continue
		}
		payload[k] = qdrant.NewValueString(v)
	}
	return payload
}

func vectorsOf(p Passage) *qdrant.Vectors {
	if p.SparseVector == nil {
		return qdrant.NewVectors(p.Vector...)
	}
	return &qdrant.Vectors{
		VectorsOptions: &qdrant.Vectors_Vectors{
			Vectors: &qdrant.NamedVectors{
				Vectors: map[string]*qdrant.Vector{
					denseVectorName: {
						Data: p.Vector,
					},
					sparseVectorName: {
						Indices: &qdrant.SparseIndices{Data: p.SparseVector.Indices},
						Data:    p.SparseVector.Values,
					},
				},
			},
		},
	}
}

// Search performs similarity search
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int, minScore float32) ([]SearchResult, error) {
	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: qdrant.PtrOf(minScore),
	}
	if s.hybrid {
		query.Using = qdrant.PtrOf(denseVectorName)
	}

	response, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0, len(response))
	for _, point := range response {
		results = append(results, resultOf(point.Score, point.Payload))
	}
	return results, nil
}

// HybridSearch performs hybrid search combining dense and sparse vectors with RRF fusion
func (s *QdrantStore) HybridSearch(ctx context.Context, denseVector []float32, sparseVector *SparseVector, topK int, minScore float32) ([]SearchResult, error) {
	// Get more candidates for fusion
	prefetchLimit := uint64(topK * 2)

	prefetch := []*qdrant.PrefetchQuery{
		{
			Query: qdrant.NewQueryDense(denseVector),
			Using: qdrant.PtrOf(denseVectorName),
			Limit: qdrant.PtrOf(prefetchLimit),
		},
	}
	if sparseVector != nil && len(sparseVector.Indices) > 0 {
		prefetch = append(prefetch, &qdrant.PrefetchQuery{
			Query: qdrant.NewQuerySparse(sparseVector.Indices, sparseVector.Values),
			Using: qdrant.PtrOf(sparseVectorName),
			Limit: qdrant.PtrOf(prefetchLimit),
		})
	}

	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Prefetch:       prefetch,
		Query:          qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hybrid search: %w", err)
	}

	results := make([]SearchResult, 0, len(response))
	for _, point := range response {
		// Fusion ignores the score threshold.
		if point.Score >= minScore {
			results = append(results, resultOf(point.Score, point.Payload))
		}
	}
	return results, nil
}

func resultOf(score float32, payload map[string]*qdrant.Value) SearchResult {
	result := SearchResult{
		Score:  score,
		Fields: make(map[string]string),
	}
	for k, v := range payload {
		switch k {
		case passageIDField:
			result.PassageID = v.GetStringValue()
		case contentField:
			result.Content = v.GetStringValue()
		default:
			result.Fields[k] = v.GetStringValue()
		}
	}
	return result
}

// Delete removes passages by id
func (s *QdrantStore) Delete(ctx context.Context, passageIDs []string) error {
	if len(passageIDs) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(passageIDs))
	for i, id := range passageIDs {
		pointIDs[i] = qdrant.NewIDUUID(PointID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: pointIDs,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Ensure QdrantStore implements VectorStore
var _ VectorStore = (*QdrantStore)(nil)
