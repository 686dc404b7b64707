// Package vectorstore implements ports.VectorStore over Qdrant, one handle
// per category collection.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/observability"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/ports"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// chunkIDNamespace is a fixed namespace used to derive deterministic point
// UUIDs from a per-document seed (case_id, article_id, term, or else the text),
// since Qdrant requires UUID or uint64 point IDs.
var chunkIDNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

func pointUUID(collection, seed string) string {
	hash := sha256.Sum256([]byte(collection + ":" + seed))
	return uuid.NewSHA1(chunkIDNamespace, hash[:]).String()
}

// Store is a Qdrant-backed VectorStore scoped to a single category collection.
type Store struct {
	client         *qdrant.Client
	collectionName string
	dimension      uint64
	batchSize      int
	logger         zerolog.Logger

	mu    sync.RWMutex
	ready bool
}

// Config configures a Store's connection and collection.
type Config struct {
	Host           string
	Port           int
	CollectionName string
	Dimension      int
	BatchSize      int
}

// NewStore creates a Store bound to a single collection. The underlying
// Qdrant client connection can be shared across collections by the registry.
func NewStore(client *qdrant.Client, cfg Config) *Store {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Store{
		client:         client,
		collectionName: cfg.CollectionName,
		dimension:      uint64(cfg.Dimension),
		batchSize:      cfg.BatchSize,
		logger:         observability.Logger("vectorstore." + cfg.CollectionName),
	}
}

// NewClient creates the shared Qdrant gRPC client.
func NewClient(host string, port int) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return client, nil
}

// EnsureCollection creates the collection (and its metadata field indexes)
// if it doesn't already exist. Safe to call repeatedly; double-checked so
// concurrent callers only pay the round trip once.
func (s *Store) EnsureCollection(ctx context.Context) error {
	s.mu.RLock()
	if s.ready {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	for _, col := range collections {
		if col == s.collectionName {
			s.ready = true
			return nil
		}
	}

	s.logger.Info().Str("collection", s.collectionName).Uint64("dimension", s.dimension).Msg("creating collection")

	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("create collection %s: %w", s.collectionName, err)
	}

	for field := range models.IndexableMetadataFields {
		if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		}); err != nil {
			s.logger.Warn().Err(err).Str("field", field).Msg("failed to create field index")
		}
	}

	s.ready = true
	return nil
}

// AddDocuments upserts documents and their vectors in batches.
func (s *Store) AddDocuments(ctx context.Context, docs []models.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents/vectors length mismatch: %d vs %d", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		payload := map[string]any{"text": doc.Text}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		seed := doc.Meta("case_id")
		if seed == "" {
			seed = doc.Meta("article_id")
		}
		if seed == "" {
			seed = doc.Meta("term")
		}
		if seed == "" {
			seed = doc.Text
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointUUID(s.collectionName, seed)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	start := time.Now()
	for i := 0; i < len(points); i += s.batchSize {
		end := i + s.batchSize
		if end > len(points) {
			end = len(points)
		}
		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collectionName,
			Points:         points[i:end],
		}); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", i, end, err)
		}
	}

	s.logger.Debug().Int("count", len(docs)).Dur("duration", time.Since(start)).Msg("upserted documents")
	return nil
}

func buildFilter(f *ports.SearchFilter) *qdrant.Filter {
	if f == nil {
		return nil
	}

	var must []*qdrant.Condition
	for field, value := range f.Must {
		must = append(must, qdrant.NewMatch(field, value))
	}
	for field, values := range f.AnyOf {
		if len(values) == 0 {
			continue
		}
		var should []*qdrant.Condition
		for _, v := range values {
			should = append(should, qdrant.NewMatch(field, v))
		}
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Filter{Filter: &qdrant.Filter{Should: should}},
		})
	}

	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// SimilaritySearch performs a dense kNN search, optionally constrained by a
// metadata filter built from a self-query plan.
func (s *Store) SimilaritySearch(ctx context.Context, queryVector []float32, opts ports.SearchOptions) ([]ports.ScoredDocument, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	start := time.Now()
	result, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter:         buildFilter(opts.Filter),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: qdrant.PtrOf(float32(opts.MinScore)),
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.collectionName, err)
	}

	out := make([]ports.ScoredDocument, len(result))
	for i, point := range result {
		doc := models.Document{Metadata: make(map[string]string)}
		if payload := point.Payload; payload != nil {
			for k, v := range payload {
				if k == "text" {
					doc.Text = v.GetStringValue()
					continue
				}
				doc.Metadata[k] = v.GetStringValue()
			}
		}
		out[i] = ports.ScoredDocument{Document: doc, Score: float64(point.Score)}
	}

	s.logger.Debug().Int("results", len(out)).Dur("duration", time.Since(start)).Msg("search completed")
	return out, nil
}

// Count returns the number of points in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return 0, err
	}
	info, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err != nil {
		return 0, fmt.Errorf("get collection info: %w", err)
	}
	if info.PointsCount == nil {
		return 0, nil
	}
	return int(*info.PointsCount), nil
}

// HealthCheck verifies the Qdrant connection is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListCollections(ctx); err != nil {
		return fmt.Errorf("vector store health check failed: %w", err)
	}
	return nil
}
