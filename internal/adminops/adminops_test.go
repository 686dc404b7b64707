package adminops

import (
	"context"
	"errors"
	"testing"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/indexer"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/retriever"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

type fakeSessions struct {
	evicted int
	active  []string
	stats   map[string]models.SessionStats
}

func (f *fakeSessions) Cleanup(ctx context.Context) (int, error) { return f.evicted, nil }
func (f *fakeSessions) ActiveSessions(ctx context.Context) ([]string, error) { return f.active, nil }
func (f *fakeSessions) Stats(ctx context.Context, sessionID string) (models.SessionStats, error) {
	s, ok := f.stats[sessionID]
	if !ok {
		return models.SessionStats{}, errors.New("not found")
	}
	return s, nil
}

type fakeRetriever struct {
	stats     retriever.Stats
	cacheSize int
}

func (f *fakeRetriever) Stats() retriever.Stats { return f.stats }
func (f *fakeRetriever) CacheSize() int         { return f.cacheSize }

type fakeIndexer struct {
	built []models.Category
}

func (f *fakeIndexer) Build(ctx context.Context, category models.Category, force bool) (indexer.Report, error) {
	f.built = append(f.built, category)
	return indexer.Report{Category: category, Indexed: 1}, nil
}

func (f *fakeIndexer) BuildAll(ctx context.Context, force bool) []indexer.Report {
	var reports []indexer.Report
	for _, cat := range []models.Category{models.CategoryAccident, models.CategoryPrecedent} {
		r, _ := f.Build(ctx, cat, force)
		reports = append(reports, r)
	}
	return reports
}

func TestCleanupSessions_ReturnsEvictedCount(t *testing.T) {
	ops := New(&fakeSessions{evicted: 3}, &fakeRetriever{}, &fakeIndexer{})
	n, err := ops.CleanupSessions(context.Background())
	if err != nil {
		t.Fatalf("CleanupSessions() error = %v", err)
	}
	if n != 3 {
		t.Errorf("got %d, want 3", n)
	}
}

func TestProcessStats_AggregatesActiveSessionsAndRetrieverCounters(t *testing.T) {
	sessions := &fakeSessions{active: []string{"a", "b", "c"}}
	retr := &fakeRetriever{stats: retriever.Stats{DirectSearches: 5, CacheHits: 2}, cacheSize: 10}
	ops := New(sessions, retr, &fakeIndexer{})

	stats := ops.ProcessStats(context.Background())
	if stats.ActiveSessions != 3 {
		t.Errorf("got active sessions %d, want 3", stats.ActiveSessions)
	}
	if stats.Retrieval.DirectSearches != 5 || stats.Retrieval.CacheHits != 2 {
		t.Errorf("got retrieval stats %+v, want DirectSearches=5, CacheHits=2", stats.Retrieval)
	}
	if stats.CacheSize != 10 {
		t.Errorf("got cache size %d, want 10", stats.CacheSize)
	}
}

func TestSessionAnalytics_UnknownSessionStillReturnsProcessStats(t *testing.T) {
	sessions := &fakeSessions{active: []string{"a"}, stats: map[string]models.SessionStats{}}
	ops := New(sessions, &fakeRetriever{}, &fakeIndexer{})

	_, proc, err := ops.SessionAnalytics(context.Background(), "missing")
	if err == nil {
		t.Error("expected an error for an unknown session")
	}
	if proc.ActiveSessions != 1 {
		t.Errorf("expected process stats to still be populated, got %+v", proc)
	}
}

func TestRebuildIndex_EmptyCategoryRebuildsAll(t *testing.T) {
	idx := &fakeIndexer{}
	ops := New(&fakeSessions{}, &fakeRetriever{}, idx)

	reports := ops.RebuildIndex(context.Background(), "", false)
	if len(reports) != 2 {
		t.Errorf("got %d reports, want 2 (every category via BuildAll)", len(reports))
	}
}

func TestRebuildIndex_SpecificCategoryBuildsOnlyThatOne(t *testing.T) {
	idx := &fakeIndexer{}
	ops := New(&fakeSessions{}, &fakeRetriever{}, idx)

	reports := ops.RebuildIndex(context.Background(), models.CategoryLaw, true)
	if len(reports) != 1 || reports[0].Category != models.CategoryLaw {
		t.Errorf("got %+v, want a single law-category report", reports)
	}
	if len(idx.built) != 1 || idx.built[0] != models.CategoryLaw {
		t.Errorf("got built=%v, want [law]", idx.built)
	}
}
