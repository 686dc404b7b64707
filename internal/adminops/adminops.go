// Package adminops implements AdminOps (C13): session cleanup triggers,
// process-wide stats aggregation, and index rebuild triggers, wired to
// the daemon's admin HTTP surface.
package adminops

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/indexer"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/observability"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/retriever"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// SessionStore is the subset AdminOps drives directly.
type SessionStore interface {
	Cleanup(ctx context.Context) (evicted int, err error)
	ActiveSessions(ctx context.Context) ([]string, error)
	Stats(ctx context.Context, sessionID string) (models.SessionStats, error)
}

// RetrieverStats is the subset of HybridRetriever AdminOps reports (spec
// §6 "Admin session analytics expanded to also expose the HybridRetriever
// counters... process-wide").
type RetrieverStats interface {
	Stats() retriever.Stats
	CacheSize() int
}

// Indexer is the subset of DocumentIndexer AdminOps can trigger over HTTP.
type Indexer interface {
	Build(ctx context.Context, category models.Category, force bool) (indexer.Report, error)
	BuildAll(ctx context.Context, force bool) []indexer.Report
}

// ProcessStats aggregates process-wide counters for GET /status-style
// admin endpoints (grounded in the teacher's handleStatus aggregation).
type ProcessStats struct {
	ActiveSessions int             `json:"active_sessions"`
	Retrieval      retriever.Stats `json:"retrieval"`
	CacheSize      int             `json:"cache_size"`
}

// Ops implements AdminOps.
type Ops struct {
	sessions  SessionStore
	retriever RetrieverStats
	indexer   Indexer
	logger    zerolog.Logger
}

// New creates Ops.
func New(sessions SessionStore, retr RetrieverStats, idx Indexer) *Ops {
	return &Ops{
		sessions:  sessions,
		retriever: retr,
		indexer:   idx,
		logger:    observability.Logger("adminops"),
	}
}

// CleanupSessions triggers an immediate idle-session sweep, returning the
// number evicted (spec §4.5 cleanup(now, T_idle), exposed here for manual
// triggering outside the periodic sweeper in internal/session).
func (o *Ops) CleanupSessions(ctx context.Context) (int, error) {
	evicted, err := o.sessions.Cleanup(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("manual session cleanup failed")
		return 0, err
	}
	return evicted, nil
}

// SessionAnalytics returns one session's stats plus the process-wide
// HybridRetriever counters (SPEC_FULL §6 supplemented feature).
func (o *Ops) SessionAnalytics(ctx context.Context, sessionID string) (models.SessionStats, ProcessStats, error) {
	stats, err := o.sessions.Stats(ctx, sessionID)
	if err != nil {
		return models.SessionStats{}, o.ProcessStats(ctx), err
	}
	return stats, o.ProcessStats(ctx), nil
}

// ProcessStats returns counters that span every session (active session
// count, HybridRetriever direct/self-query/cache-hit/hybrid-search
// counters, current cache occupancy).
func (o *Ops) ProcessStats(ctx context.Context) ProcessStats {
	active := 0
	if ids, err := o.sessions.ActiveSessions(ctx); err == nil {
		active = len(ids)
	}
	return ProcessStats{
		ActiveSessions: active,
		Retrieval:      o.retriever.Stats(),
		CacheSize:      o.retriever.CacheSize(),
	}
}

// RebuildIndex triggers DocumentIndexer.Build for one category (empty
// category rebuilds every category), wiring spec §4.7's build contract
// to the admin surface (SPEC_FULL §6 "Index rebuild trigger over HTTP").
func (o *Ops) RebuildIndex(ctx context.Context, category models.Category, force bool) []indexer.Report {
	if category == "" {
		return o.indexer.BuildAll(ctx, force)
	}
	report, err := o.indexer.Build(ctx, category, force)
	if err != nil {
		o.logger.Warn().Err(err).Str("category", string(category)).Msg("admin-triggered rebuild failed")
	}
	return []indexer.Report{report}
}
