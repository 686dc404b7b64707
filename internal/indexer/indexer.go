// Package indexer implements DocumentIndexer (C5): builds and rebuilds
// per-category collections from JSON source files.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/observability"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/ports"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// CollectionResolver hands out the VectorStore for a category; satisfied
// by *registry.Registry.
type CollectionResolver interface {
	Get(category models.Category) (ports.VectorStore, error)
}

// Config mirrors config.IndexerConfig.
type Config struct {
	MetadataDir  string
	BatchSize    int
	ForceRebuild bool
}

// Indexer implements DocumentIndexer.
type Indexer struct {
	registry CollectionResolver
	embedder ports.Embedder
	cfg      Config
	logger   zerolog.Logger
}

// New creates an Indexer.
func New(registry CollectionResolver, embedder ports.Embedder, cfg Config) *Indexer {
	if cfg.BatchSize <= 0 || cfg.BatchSize > 50 {
		cfg.BatchSize = 50
	}
	return &Indexer{
		registry: registry,
		embedder: embedder,
		cfg:      cfg,
		logger:   observability.Logger("indexer"),
	}
}

// sourceDocument is the on-disk JSON shape for one category's source file:
// a bare array of {text, metadata} records (spec §4.7).
type sourceDocument struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Report summarizes one Build call.
type Report struct {
	Category   models.Category `json:"category"`
	Loaded     int             `json:"loaded"`
	Indexed    int             `json:"indexed"`
	Skipped    bool            `json:"skipped"`
	DurationMs int64           `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
}

// Build loads category.json from metadata_dir, embeds it in batches of at
// most Config.BatchSize, and upserts into the category's collection.
// Idempotent when force=false and the collection is already non-empty
// (spec §4.7, §8 "idempotent indexer" property).
func (idx *Indexer) Build(ctx context.Context, category models.Category, force bool) (Report, error) {
	start := time.Now()
	report := Report{Category: category}

	vs, err := idx.registry.Get(category)
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("resolve collection for %s: %w", category, err)
	}

	if !force {
		count, err := vs.Count(ctx)
		if err == nil && count > 0 {
			report.Skipped = true
			report.DurationMs = time.Since(start).Milliseconds()
			return report, nil
		}
	}

	docs, err := idx.load(category)
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("load source for %s: %w", category, err)
	}
	report.Loaded = len(docs)

	for offset := 0; offset < len(docs); offset += idx.cfg.BatchSize {
		end := offset + idx.cfg.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[offset:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Text
		}

		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			report.Error = err.Error()
			return report, fmt.Errorf("embed batch [%d:%d) for %s: %w", offset, end, category, err)
		}

		if err := vs.AddDocuments(ctx, batch, vectors); err != nil {
			report.Error = err.Error()
			return report, fmt.Errorf("upsert batch [%d:%d) for %s: %w", offset, end, category, err)
		}
		report.Indexed += len(batch)
	}

	report.DurationMs = time.Since(start).Milliseconds()
	observability.LogEvent(idx.logger, observability.EventIndexRebuilt, map[string]interface{}{
		"category": string(category), "loaded": report.Loaded, "indexed": report.Indexed,
	})
	return report, nil
}

// BuildAll runs Build for every category, continuing past per-category
// failures and returning all reports.
func (idx *Indexer) BuildAll(ctx context.Context, force bool) []Report {
	reports := make([]Report, 0, len(models.Categories))
	for _, cat := range models.Categories {
		if cat == models.CategoryGeneral {
			continue // no corpus backs the general category (spec §3)
		}
		report, err := idx.Build(ctx, cat, force)
		if err != nil {
			idx.logger.Warn().Err(err).Str("category", string(cat)).Msg("category build failed")
		}
		reports = append(reports, report)
	}
	return reports
}

func (idx *Indexer) load(category models.Category) ([]models.Document, error) {
	path := filepath.Join(idx.cfg.MetadataDir, string(category)+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sources []sourceDocument
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	docs := make([]models.Document, len(sources))
	for i, s := range sources {
		docs[i] = models.Document{Text: s.Text, Metadata: s.Metadata}
	}
	return docs, nil
}
