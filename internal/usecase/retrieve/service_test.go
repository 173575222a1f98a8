package retrieve

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/groundkit/groundkit/internal/domain"
)

// --- Mocks ---

type mockSearcher struct {
	mu         sync.Mutex
	lexQueries []string
	vectorFn   func(ctx context.Context, vec []float32, k int, minSim float64) ([]domain.Candidate, error)
	lexicalFn  func(ctx context.Context, query string, k int) ([]domain.Candidate, error)
}

func (m *mockSearcher) VectorSearch(ctx context.Context, vec []float32, k int, minSim float64) ([]domain.Candidate, error) {
	if m.vectorFn != nil {
		return m.vectorFn(ctx, vec, k, minSim)
	}
	return nil, nil
}

func (m *mockSearcher) LexicalSearch(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	m.mu.Lock()
	m.lexQueries = append(m.lexQueries, query)
	m.mu.Unlock()
	if m.lexicalFn != nil {
		return m.lexicalFn(ctx, query, k)
	}
	return nil, nil
}

type mockQueryEmbedder struct{}

func (m *mockQueryEmbedder) Embed(_ context.Context, _ string) ([]float32, bool) {
	return []float32{1, 0}, false
}

func testTiers() map[domain.Tier]TierSettings {
	return map[domain.Tier]TierSettings{
		domain.TierBasic:    {Candidates: 5, MinSimilarity: 0.75, FinalResults: 3},
		domain.TierAdvanced: {Candidates: 20, MinSimilarity: 0.65, FinalResults: 8},
	}
}

// --- Tests ---

func TestRetrieve_UsesTierSettings(t *testing.T) {
	var gotK int
	var gotMinSim float64
	search := &mockSearcher{
		vectorFn: func(_ context.Context, _ []float32, k int, minSim float64) ([]domain.Candidate, error) {
			gotK = k
			gotMinSim = minSim
			return nil, nil
		},
	}
	svc := New(search, &mockQueryEmbedder{}, nil, testTiers(), DefaultWeights, zap.NewNop())

	if _, err := svc.Retrieve(context.Background(), "max_connections setting", domain.TierAdvanced); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotK != 20 || gotMinSim != 0.65 {
		t.Errorf("expected advanced tier settings (20, 0.65), got (%d, %v)", gotK, gotMinSim)
	}
}

func TestRetrieve_UnknownTierFallsBackToBasic(t *testing.T) {
	var gotK int
	search := &mockSearcher{
		vectorFn: func(_ context.Context, _ []float32, k int, _ float64) ([]domain.Candidate, error) {
			gotK = k
			return nil, nil
		},
	}
	svc := New(search, &mockQueryEmbedder{}, nil, testTiers(), DefaultWeights, zap.NewNop())

	if _, err := svc.Retrieve(context.Background(), "some query v1.2", domain.TierEnhanced); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotK != 5 {
		t.Errorf("expected basic candidates 5, got %d", gotK)
	}
}

func TestRetrieve_BroadQueryRunsVariants(t *testing.T) {
	search := &mockSearcher{}
	svc := New(search, &mockQueryEmbedder{}, nil, testTiers(), DefaultWeights, zap.NewNop())

	res, err := svc.Retrieve(context.Background(), "install", domain.TierBasic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ExpansionUsed {
		t.Error("expected expansion for a broad query")
	}
	if len(search.lexQueries) < 2 {
		t.Errorf("expected multiple lexical variants, got %v", search.lexQueries)
	}
}

func TestRetrieve_PreciseQuerySingleVariant(t *testing.T) {
	search := &mockSearcher{}
	svc := New(search, &mockQueryEmbedder{}, nil, testTiers(), DefaultWeights, zap.NewNop())

	res, err := svc.Retrieve(context.Background(), `"connection refused" in logs`, domain.TierBasic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExpansionUsed {
		t.Error("expected no expansion for a quoted query")
	}
	if len(search.lexQueries) != 1 {
		t.Errorf("expected one lexical query, got %v", search.lexQueries)
	}
}

type mockResultCache struct {
	data map[string][]domain.Candidate
	puts int
}

func newMockResultCache() *mockResultCache {
	return &mockResultCache{data: make(map[string][]domain.Candidate)}
}

func (m *mockResultCache) Get(_ context.Context, query string, tier domain.Tier) ([]domain.Candidate, bool, bool) {
	cands, ok := m.data[string(tier)+":"+query]
	return cands, false, ok
}

func (m *mockResultCache) Put(_ context.Context, query string, tier domain.Tier, cands []domain.Candidate, _ bool) {
	m.puts++
	m.data[string(tier)+":"+query] = cands
}

func TestRetrieve_CachedResultSkipsSearches(t *testing.T) {
	vectorCalls := 0
	search := &mockSearcher{
		vectorFn: func(_ context.Context, _ []float32, _ int, _ float64) ([]domain.Candidate, error) {
			vectorCalls++
			return []domain.Candidate{{ChunkID: "a", Vector: 0.9}}, nil
		},
	}
	cache := newMockResultCache()
	svc := New(search, &mockQueryEmbedder{}, cache, testTiers(), DefaultWeights, zap.NewNop())

	first, err := svc.Retrieve(context.Background(), "replication lag causes", domain.TierBasic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Retrieve(context.Background(), "replication lag causes", domain.TierBasic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if vectorCalls != 1 {
		t.Errorf("expected one vector search, got %d", vectorCalls)
	}
	if len(search.lexQueries) != 1 {
		t.Errorf("expected one lexical search, got %v", search.lexQueries)
	}
	if cache.puts != 1 {
		t.Errorf("expected one cache write, got %d", cache.puts)
	}
	if len(second.Candidates) != len(first.Candidates) {
		t.Errorf("cached candidates differ: %d vs %d", len(second.Candidates), len(first.Candidates))
	}
}

func TestRetrieve_MergesAndTruncates(t *testing.T) {
	search := &mockSearcher{
		vectorFn: func(_ context.Context, _ []float32, _ int, _ float64) ([]domain.Candidate, error) {
			return []domain.Candidate{
				{ChunkID: "a", Vector: 0.9},
				{ChunkID: "b", Vector: 0.8},
				{ChunkID: "c", Vector: 0.7},
				{ChunkID: "d", Vector: 0.66},
			}, nil
		},
	}
	svc := New(search, &mockQueryEmbedder{}, nil, testTiers(), DefaultWeights, zap.NewNop())

	res, err := svc.Retrieve(context.Background(), "what is replication v2.1", domain.TierBasic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Candidates) != 3 {
		t.Fatalf("expected 3 final results, got %d", len(res.Candidates))
	}
	if res.Candidates[0].ChunkID != "a" {
		t.Errorf("expected best candidate first, got %q", res.Candidates[0].ChunkID)
	}
}
