// Package retriever implements HybridRetriever (C8): the precedent-citation
// gate, direct kNN + deterministic self-query hybrid search, merge/dedupe,
// a bounded result cache, and retrieval statistics.
package retriever

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/citation"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/observability"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/ports"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// SentinelPrecedentNotFound prefixes the non-answer the precedent gate
// returns when a cited case number isn't in the store (spec §4.3.1).
const SentinelPrecedentNotFound = "EXACT_PRECEDENT_NOT_FOUND:"

// CollectionResolver hands out the VectorStore for a category; satisfied by
// *registry.Registry.
type CollectionResolver interface {
	Get(category models.Category) (ports.VectorStore, error)
}

// Config mirrors config.RetrieverConfig.
type Config struct {
	MaxDocs                int
	MaxDocsHardCap         int
	CacheSize              int
	SelfQueryTriggerCount  int
	SelfQueryLengthTrigger int
	DirectFetchMultiplier  int
	PrecedentCandidateK    int
	SnippetCharLimit       int
	PrecedentCharLimit     int
}

// Stats are the retrieval counters AdminOps exposes (spec §4.3).
type Stats struct {
	DirectSearches    int64
	SelfQuerySearches int64
	CacheHits         int64
	HybridSearches    int64
}

// Retriever implements HybridRetriever.
type Retriever struct {
	registry CollectionResolver
	embedder ports.Embedder
	cfg      Config
	cache    *resultCache
	logger   zerolog.Logger

	directSearches    atomic.Int64
	selfQuerySearches atomic.Int64
	cacheHits         atomic.Int64
	hybridSearches    atomic.Int64
}

// New creates a Retriever.
func New(registry CollectionResolver, embedder ports.Embedder, cfg Config) *Retriever {
	if cfg.MaxDocs <= 0 {
		cfg.MaxDocs = 2
	}
	if cfg.MaxDocsHardCap < cfg.MaxDocs {
		cfg.MaxDocsHardCap = 3
	}
	if cfg.DirectFetchMultiplier <= 0 {
		cfg.DirectFetchMultiplier = 2
	}
	if cfg.PrecedentCandidateK <= 0 {
		cfg.PrecedentCandidateK = 10
	}
	if cfg.SnippetCharLimit <= 0 {
		cfg.SnippetCharLimit = 200
	}
	if cfg.PrecedentCharLimit <= 0 {
		cfg.PrecedentCharLimit = 500
	}
	return &Retriever{
		registry: registry,
		embedder: embedder,
		cfg:      cfg,
		cache:    newResultCache(cfg.CacheSize),
		logger:   observability.Logger("retriever"),
	}
}

// Stats returns a snapshot of the retrieval counters.
func (r *Retriever) Stats() Stats {
	return Stats{
		DirectSearches:    r.directSearches.Load(),
		SelfQuerySearches: r.selfQuerySearches.Load(),
		CacheHits:         r.cacheHits.Load(),
		HybridSearches:    r.hybridSearches.Load(),
	}
}

// CacheSize reports the current number of cached entries.
func (r *Retriever) CacheSize() int {
	return r.cache.len()
}

// Search implements the HybridRetriever contract (spec §4.3): returns a
// pre-formatted context string, "" when nothing useful is found, or the
// EXACT_PRECEDENT_NOT_FOUND sentinel. It never returns an error; every
// failure mode downgrades per spec §4.3's failure semantics.
func (r *Retriever) Search(ctx context.Context, query string, category models.Category) string {
	if category == models.CategoryPrecedent {
		if cites := citation.Extract(query); len(cites) > 0 {
			return r.precedentGate(ctx, cites)
		}
	}

	return r.hybridSearch(ctx, query, category)
}

// precedentGate implements spec §4.3.1.
func (r *Retriever) precedentGate(ctx context.Context, cites []models.Citation) string {
	vs, err := r.registry.Get(models.CategoryPrecedent)
	if err != nil {
		r.logger.Warn().Err(err).Msg("precedent collection unavailable, failing open to not-found")
		return SentinelPrecedentNotFound + cites[0].CaseID
	}

	var exact, partial *ports.ScoredDocument

	for _, cite := range cites {
		vec, err := r.embedder.Embed(ctx, cite.Raw)
		if err != nil {
			r.logger.Warn().Err(err).Msg("embed citation text failed")
			continue
		}

		results, err := vs.SimilaritySearch(ctx, vec, ports.SearchOptions{Limit: r.cfg.PrecedentCandidateK})
		if err != nil {
			r.logger.Warn().Err(err).Msg("precedent candidate search failed")
			continue
		}

		for i := range results {
			candidate := models.Citation{
				CaseID: results[i].Document.Meta("case_id"),
				Court:  results[i].Document.Meta("court"),
			}
			if candidate.CaseID == "" {
				continue
			}
			if citation.IsExactMatch(cite, candidate) {
				if exact == nil {
					exact = &results[i]
				}
			} else if partial == nil && citation.IsPartialMatch(cite, candidate) {
				partial = &results[i]
			}
		}

		if exact != nil {
			break
		}
	}

	switch {
	case exact != nil:
		return formatPrecedentBlock(*exact, false, r.cfg.PrecedentCharLimit)
	case partial != nil:
		return formatPrecedentBlock(*partial, true, r.cfg.PrecedentCharLimit)
	default:
		return SentinelPrecedentNotFound + cites[0].CaseID
	}
}

func formatPrecedentBlock(doc ports.ScoredDocument, isPartial bool, charLimit int) string {
	tag := ""
	if isPartial {
		tag = "(부분일치) "
	}
	content := truncateRunes(doc.Document.Text, charLimit)
	return fmt.Sprintf("%s판례: %s, 법원: %s\n%s", tag, doc.Document.Meta("case_id"), doc.Document.Meta("court"), content)
}

// hybridSearch implements spec §4.3.2.
func (r *Retriever) hybridSearch(ctx context.Context, query string, category models.Category) string {
	if cached, ok := r.cache.get(category, query); ok {
		r.cacheHits.Add(1)
		return cached
	}

	vs, err := r.registry.Get(category)
	if err != nil {
		r.logger.Warn().Err(err).Str("category", string(category)).Msg("collection unavailable, returning empty context")
		return ""
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn().Err(err).Msg("query embedding failed, returning empty context")
		return ""
	}

	r.hybridSearches.Add(1)

	directResults, err := vs.SimilaritySearch(ctx, queryVec, ports.SearchOptions{
		Limit: r.cfg.MaxDocs * r.cfg.DirectFetchMultiplier,
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("direct search failed, returning empty context")
		return ""
	}
	r.directSearches.Add(1)

	triggerCount := TriggerCount(category, query)
	useSelfQuery := triggerCount >= r.cfg.SelfQueryTriggerCount || len([]rune(query)) > r.cfg.SelfQueryLengthTrigger

	var selfResults []ports.ScoredDocument
	if useSelfQuery {
		plan := PlanQuery(category, query)
		selfVec := queryVec
		if plan.RewrittenQuery != query {
			if v, err := r.embedder.Embed(ctx, plan.RewrittenQuery); err == nil {
				selfVec = v
			}
		}
		results, err := vs.SimilaritySearch(ctx, selfVec, ports.SearchOptions{
			Limit:  r.cfg.MaxDocs,
			Filter: plan.Filter,
		})
		if err != nil {
			r.logger.Warn().Err(err).Msg("self-query search failed, falling back to direct results only")
		} else {
			selfResults = results
			r.selfQuerySearches.Add(1)
		}
	}

	merged := mergeAndDedupe(selfResults, directResults)

	maxDocs := r.cfg.MaxDocs
	if maxDocs > r.cfg.MaxDocsHardCap {
		maxDocs = r.cfg.MaxDocsHardCap
	}
	if len(merged) > maxDocs {
		merged = merged[:maxDocs]
	}

	if len(merged) == 0 {
		return ""
	}

	formatted := formatContext(merged, category, r.cfg.SnippetCharLimit)
	if r.cache.len() < r.cfg.CacheSize {
		r.cache.put(category, query, formatted)
	}
	return formatted
}

// mergeAndDedupe concatenates self-query results then direct results,
// removing duplicates by the first-100-chars text hash (spec §4.3.2).
func mergeAndDedupe(selfResults, directResults []ports.ScoredDocument) []ports.ScoredDocument {
	seen := make(map[string]bool, len(selfResults)+len(directResults))
	out := make([]ports.ScoredDocument, 0, len(selfResults)+len(directResults))

	for _, list := range [][]ports.ScoredDocument{selfResults, directResults} {
		for _, doc := range list {
			key := snippetKey(doc.Document.Text)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, doc)
		}
	}
	return out
}

func formatContext(docs []ports.ScoredDocument, category models.Category, snippetLimit int) string {
	var b []byte
	for i, doc := range docs {
		line := fmt.Sprintf("[%d] %s\n%s", i+1, truncateRunes(doc.Document.Text, snippetLimit), metadataLine(category, doc.Document))
		if i > 0 {
			b = append(b, '\n')
		}
		b = append(b, line...)
	}
	return string(b)
}

// metadataLine is the one-line per-category metadata projection from spec
// §4.3.2, sourced from the original classifier's METADATA_KEY mapping for
// precedent/law and extended analogously for accident/term.
func metadataLine(category models.Category, doc models.Document) string {
	switch category {
	case models.CategoryPrecedent:
		return fmt.Sprintf("판례: %s, 법원: %s", doc.Meta("case_id"), doc.Meta("court"))
	case models.CategoryLaw:
		return fmt.Sprintf("법령: %s %s", doc.Meta("article_number"), doc.Meta("article_title"))
	case models.CategoryAccident:
		return fmt.Sprintf("사고 ID: %s, 기본 과실비율: %s", doc.Meta("case_id"), doc.Meta("base_ratio"))
	case models.CategoryTerm:
		return fmt.Sprintf("용어: %s", doc.Meta("term"))
	default:
		return ""
	}
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
