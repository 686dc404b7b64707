// Package ports declares the capability interfaces the orchestrator and
// retriever depend on. Concrete adapters live in internal/ai,
// internal/vectorstore, internal/session and internal/messagestore.
package ports

import (
	"context"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// ChatModel performs single-call answer synthesis.
type ChatModel interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SearchFilter is a metadata equality/set-membership constraint handed to VectorStore.
type SearchFilter struct {
	Must    map[string]string // field == value
	AnyOf   map[string][]string // field in (values...)
}

// SearchOptions configures a similarity search.
type SearchOptions struct {
	Limit    int
	MinScore float64
	Filter   *SearchFilter
}

// VectorStore is a per-collection handle over a category's embedded corpus.
type VectorStore interface {
	AddDocuments(ctx context.Context, docs []models.Document, vectors [][]float32) error
	SimilaritySearch(ctx context.Context, queryVector []float32, opts SearchOptions) ([]ScoredDocument, error)
	Count(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) error
}

// ScoredDocument pairs a retrieved Document with its similarity score.
type ScoredDocument struct {
	Document models.Document
	Score    float64
}

// MessageStore durably persists the turn-by-turn conversation log.
type MessageStore interface {
	Append(ctx context.Context, sessionID string, msg models.Message) error
	List(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
}
