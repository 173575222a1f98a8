package retrievalcache

import (
	"context"
	"testing"
	"time"

	"github.com/groundkit/groundkit/internal/db"
	"github.com/groundkit/groundkit/internal/domain"
)

// --- Mocks ---

type kvStore struct {
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newKVStore() *kvStore {
	return &kvStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (s *kvStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *kvStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func sampleCandidates() []domain.Candidate {
	return []domain.Candidate{
		{ChunkID: "s:1:0", SourceID: "s", SourceTitle: "Manual", Index: 0, Score: 0.91,
			Content: "To restart the database service, run the restart command."},
		{ChunkID: "s:1:1", SourceID: "s", SourceTitle: "Manual", Index: 1, Score: 0.72,
			Content: "Connection pool settings live in the server block."},
	}
}

// --- Tests ---

func TestCache_RoundTrip(t *testing.T) {
	cache := New(newKVStore(), 30*time.Minute)
	ctx := context.Background()

	cache.Put(ctx, "restart database", domain.TierBasic, sampleCandidates(), true)

	cands, expanded, ok := cache.Get(ctx, "restart database", domain.TierBasic)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !expanded {
		t.Error("expected expansion flag preserved")
	}
	if len(cands) != 2 || cands[0].ChunkID != "s:1:0" {
		t.Errorf("candidates not preserved: %+v", cands)
	}
}

func TestCache_TierSeparation(t *testing.T) {
	cache := New(newKVStore(), 30*time.Minute)
	ctx := context.Background()

	cache.Put(ctx, "restart database", domain.TierBasic, sampleCandidates(), false)

	if _, _, ok := cache.Get(ctx, "restart database", domain.TierAdvanced); ok {
		t.Error("expected miss for a different tier")
	}
}

func TestCache_QueryNormalization(t *testing.T) {
	cache := New(newKVStore(), 30*time.Minute)
	ctx := context.Background()

	cache.Put(ctx, "Restart   Database", domain.TierBasic, sampleCandidates(), false)

	if _, _, ok := cache.Get(ctx, "restart database", domain.TierBasic); !ok {
		t.Error("expected hit after case and whitespace normalization")
	}
}

func TestCache_Miss(t *testing.T) {
	cache := New(newKVStore(), 30*time.Minute)

	if _, _, ok := cache.Get(context.Background(), "never asked", domain.TierBasic); ok {
		t.Error("expected miss on an empty cache")
	}
}

func TestCache_StoreErrorIsMiss(t *testing.T) {
	store := newKVStore()
	store.err = context.DeadlineExceeded
	cache := New(store, 30*time.Minute)

	if _, _, ok := cache.Get(context.Background(), "restart database", domain.TierBasic); ok {
		t.Error("expected miss on store error")
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	store := newKVStore()
	store.data[cacheKey("broken", domain.TierBasic)] = []byte("{not json")
	cache := New(store, 30*time.Minute)

	if _, _, ok := cache.Get(context.Background(), "broken", domain.TierBasic); ok {
		t.Error("expected miss on a corrupt entry")
	}
}

func TestCache_TTLRecorded(t *testing.T) {
	store := newKVStore()
	cache := New(store, 45*time.Minute)

	cache.Put(context.Background(), "restart database", domain.TierBasic, sampleCandidates(), false)

	key := cacheKey("restart database", domain.TierBasic)
	if store.ttls[key] != 45*time.Minute {
		t.Errorf("expected TTL 45m recorded, got %v", store.ttls[key])
	}
}
