package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/groundkit/groundkit/internal/domain"
	"github.com/groundkit/groundkit/internal/extract"
	"github.com/groundkit/groundkit/internal/usecase/embedding"
)

// --- Mocks ---

type mockSourceRepo struct {
	mu      sync.Mutex
	sources map[string]domain.Source

	createFn func(ctx context.Context, src *domain.Source) error
	listFn   func(ctx context.Context) ([]domain.Source, error)

	generations map[string]int64
	counts      map[string][3]int
	deleted     []string
}

func newMockSourceRepo() *mockSourceRepo {
	return &mockSourceRepo{
		sources:     make(map[string]domain.Source),
		generations: make(map[string]int64),
		counts:      make(map[string][3]int),
	}
}

func (m *mockSourceRepo) Create(ctx context.Context, src *domain.Source) error {
	if m.createFn != nil {
		return m.createFn(ctx, src)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[src.ID] = *src
	return nil
}

func (m *mockSourceRepo) Get(_ context.Context, id string) (domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[id]
	if !ok {
		return domain.Source{}, domain.ErrSourceNotFound
	}
	return src, nil
}

func (m *mockSourceRepo) SetCounts(_ context.Context, id string, chunks, embeddings, fallbacks int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[id] = [3]int{chunks, embeddings, fallbacks}
	return nil
}

func (m *mockSourceRepo) SetGeneration(_ context.Context, id string, gen int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[id] = gen
	return nil
}

func (m *mockSourceRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return domain.ErrSourceNotFound
	}
	delete(m.sources, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSourceRepo) List(ctx context.Context) ([]domain.Source, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Source, 0, len(m.sources))
	for _, src := range m.sources {
		out = append(out, src)
	}
	return out, nil
}

func (m *mockSourceRepo) setState(id string, state domain.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.sources[id]
	src.Status = state
	m.sources[id] = src
}

func (m *mockSourceRepo) touch(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.sources[id]
	src.UpdatedAt = at
	m.sources[id] = src
}

type mockChunkRepo struct {
	mu          sync.Mutex
	put         []domain.Chunk
	promoted    []int64
	deletedGens []int64
	deletedAll  []string
	linked      []int64

	putBatchFn func(ctx context.Context, title string, chunks []domain.Chunk) error
}

func (m *mockChunkRepo) PutBatch(ctx context.Context, title string, chunks []domain.Chunk) error {
	if m.putBatchFn != nil {
		return m.putBatchFn(ctx, title, chunks)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put = append(m.put, chunks...)
	return nil
}

func (m *mockChunkRepo) Promote(_ context.Context, _ string, gen int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promoted = append(m.promoted, gen)
	return len(m.put), nil
}

func (m *mockChunkRepo) DeleteGeneration(_ context.Context, _ string, gen int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedGens = append(m.deletedGens, gen)
	return nil
}

func (m *mockChunkRepo) DeleteAll(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedAll = append(m.deletedAll, sourceID)
	return nil
}

func (m *mockChunkRepo) Link(_ context.Context, _ string, gen int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linked = append(m.linked, gen)
	return 0, nil
}

// mockTracker applies transitions against the source repo so state
// checks behave like the real tracker.
type mockTracker struct {
	repo   *mockSourceRepo
	states []domain.State
	failed []string
}

func (m *mockTracker) Advance(ctx context.Context, id string, next domain.State) error {
	src, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !src.Status.CanTransition(next) {
		return domain.ErrIllegalTransition
	}
	m.repo.setState(id, next)
	m.states = append(m.states, next)
	return nil
}

func (m *mockTracker) Fail(ctx context.Context, id, reason string) error {
	m.repo.setState(id, domain.StateFailed)
	m.failed = append(m.failed, reason)
	return nil
}

func (m *mockTracker) Reset(ctx context.Context, id string) error {
	m.repo.setState(id, domain.StatePending)
	return nil
}

type mockEmbedder struct {
	fallbackEvery int // every Nth text gets a fallback vector, 0 = none
	count         int
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) []embedding.Result {
	out := make([]embedding.Result, len(texts))
	for i := range texts {
		m.count++
		fallback := m.fallbackEvery > 0 && m.count%m.fallbackEvery == 0
		out[i] = embedding.Result{Vector: []float32{1, 2}, Fallback: fallback}
	}
	return out
}

type mockFetcher struct {
	fetchFn func(ctx context.Context, url string) (string, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, url)
	}
	return "/tmp/fetched", nil
}

// mockExtractor feeds fixed text blocks to the callback.
type mockExtractor struct {
	blocks []string
	err    error
}

func (m *mockExtractor) File(_ context.Context, _ string, fn extract.BlockFunc) error {
	if m.err != nil {
		return m.err
	}
	for _, b := range m.blocks {
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}
