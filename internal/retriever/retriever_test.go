package retriever

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/ports"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
func (fakeEmbedder) Dimension() int { return 3 }

type fakeStore struct {
	docs []ports.ScoredDocument
	err  error
}

func (f *fakeStore) AddDocuments(ctx context.Context, docs []models.Document, vectors [][]float32) error {
	return nil
}
func (f *fakeStore) SimilaritySearch(ctx context.Context, queryVector []float32, opts ports.SearchOptions) ([]ports.ScoredDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.docs
	if opts.Filter != nil {
		out = nil
		for _, d := range f.docs {
			if matchesFilter(d.Document, opts.Filter) {
				out = append(out, d)
			}
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
func (f *fakeStore) Count(ctx context.Context) (int, error) { return len(f.docs), nil }
func (f *fakeStore) HealthCheck(ctx context.Context) error  { return nil }

func matchesFilter(doc models.Document, f *ports.SearchFilter) bool {
	for k, v := range f.Must {
		if doc.Meta(k) != v {
			return false
		}
	}
	return true
}

type fakeResolver struct {
	stores map[models.Category]*fakeStore
}

func (r *fakeResolver) Get(category models.Category) (ports.VectorStore, error) {
	s, ok := r.stores[category]
	if !ok {
		return nil, fmt.Errorf("no store for %s", category)
	}
	return s, nil
}

func testConfig() Config {
	return Config{
		MaxDocs:                2,
		MaxDocsHardCap:         3,
		CacheSize:              100,
		SelfQueryTriggerCount:  2,
		SelfQueryLengthTrigger: 30,
		DirectFetchMultiplier:  2,
		PrecedentCandidateK:    10,
		SnippetCharLimit:       200,
		PrecedentCharLimit:     500,
	}
}

func TestSearch_PrecedentExactMatch(t *testing.T) {
	store := &fakeStore{docs: []ports.ScoredDocument{
		{Document: models.Document{Text: "판결 내용입니다", Metadata: map[string]string{"case_id": "2019다12345", "court": "대법원"}}, Score: 0.9},
	}}
	resolver := &fakeResolver{stores: map[models.Category]*fakeStore{models.CategoryPrecedent: store}}
	r := New(resolver, fakeEmbedder{}, testConfig())

	got := r.Search(context.Background(), "대법원 2019다12345 판례 내용 알려줘", models.CategoryPrecedent)
	if got == "" {
		t.Fatal("expected non-empty context")
	}
	if strings.HasPrefix(got, SentinelPrecedentNotFound) {
		t.Fatal("expected an exact match, got sentinel")
	}
}

func TestSearch_PrecedentNotFound(t *testing.T) {
	store := &fakeStore{docs: []ports.ScoredDocument{
		{Document: models.Document{Text: "다른 판결", Metadata: map[string]string{"case_id": "2010다1", "court": "대법원"}}, Score: 0.9},
	}}
	resolver := &fakeResolver{stores: map[models.Category]*fakeStore{models.CategoryPrecedent: store}}
	r := New(resolver, fakeEmbedder{}, testConfig())

	got := r.Search(context.Background(), "대법원 9999다99999 판례 알려줘", models.CategoryPrecedent)
	want := SentinelPrecedentNotFound + "9999다99999"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSearch_HybridMergeAndDedupe(t *testing.T) {
	store := &fakeStore{docs: []ports.ScoredDocument{
		{Document: models.Document{Text: "교차로 좌회전 사고 사례", Metadata: map[string]string{"case_id": "A"}}, Score: 0.9},
		{Document: models.Document{Text: "교차로 좌회전 사고 사례", Metadata: map[string]string{"case_id": "A"}}, Score: 0.8},
		{Document: models.Document{Text: "추돌 사고 사례", Metadata: map[string]string{"case_id": "B"}}, Score: 0.7},
	}}
	resolver := &fakeResolver{stores: map[models.Category]*fakeStore{models.CategoryAccident: store}}
	r := New(resolver, fakeEmbedder{}, testConfig())

	got := r.Search(context.Background(), "교차로에서 사고가 났어요", models.CategoryAccident)
	if got == "" {
		t.Fatal("expected non-empty context")
	}
	if n := strings.Count(got, "교차로 좌회전 사고 사례"); n != 1 {
		t.Errorf("duplicate document appears %d times, want 1", n)
	}
	if !strings.Contains(got, "추돌 사고 사례") {
		t.Error("expected the second distinct document to survive dedupe and truncation")
	}
}

func TestSearch_MissingCollectionReturnsEmpty(t *testing.T) {
	resolver := &fakeResolver{stores: map[models.Category]*fakeStore{}}
	r := New(resolver, fakeEmbedder{}, testConfig())

	got := r.Search(context.Background(), "테스트 질의입니다", models.CategoryLaw)
	if got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestSearch_CacheHit(t *testing.T) {
	store := &fakeStore{docs: []ports.ScoredDocument{
		{Document: models.Document{Text: "용어 설명입니다", Metadata: map[string]string{"term": "과실비율"}}, Score: 0.9},
	}}
	resolver := &fakeResolver{stores: map[models.Category]*fakeStore{models.CategoryTerm: store}}
	r := New(resolver, fakeEmbedder{}, testConfig())

	query := "과실비율이 무엇인가요"
	first := r.Search(context.Background(), query, models.CategoryTerm)
	if first == "" {
		t.Fatal("expected non-empty context on first search")
	}
	if r.Stats().CacheHits != 0 {
		t.Fatalf("expected 0 cache hits before second call, got %d", r.Stats().CacheHits)
	}

	second := r.Search(context.Background(), query, models.CategoryTerm)
	if second != first {
		t.Errorf("cached result mismatch: %q vs %q", first, second)
	}
	if r.Stats().CacheHits != 1 {
		t.Errorf("expected 1 cache hit, got %d", r.Stats().CacheHits)
	}
}
