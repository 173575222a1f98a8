package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/groundkit/groundkit/internal/db"
)

// kvStore is an in-memory key/value store for cache tests. TTLs are
// recorded but not enforced.
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

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := New(newKVStore(), time.Hour)

	want := []float32{0.25, -1.5, 3.75, 0}
	cache.Put(ctx, "how do I restart the service", want)

	got, ok := cache.Get(ctx, "how do I restart the service")
	if !ok {
		t.Fatal("Get returned miss after Put")
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("vec[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGetMiss(t *testing.T) {
	cache := New(newKVStore(), time.Hour)

	if _, ok := cache.Get(context.Background(), "never stored"); ok {
		t.Fatal("Get returned hit for text never stored")
	}
}

func TestDistinctTextsDistinctEntries(t *testing.T) {
	ctx := context.Background()
	cache := New(newKVStore(), time.Hour)

	cache.Put(ctx, "alpha", []float32{1})
	cache.Put(ctx, "beta", []float32{2})

	a, _ := cache.Get(ctx, "alpha")
	b, _ := cache.Get(ctx, "beta")
	if a[0] != 1 || b[0] != 2 {
		t.Errorf("entries collided: alpha=%v beta=%v", a, b)
	}
}

func TestStoreErrorIsMiss(t *testing.T) {
	store := newKVStore()
	store.err = errors.New("connection refused")
	cache := New(store, time.Hour)

	if _, ok := cache.Get(context.Background(), "anything"); ok {
		t.Fatal("Get returned hit on store error")
	}
}

func TestPutIgnoresStoreError(t *testing.T) {
	store := newKVStore()
	store.err = errors.New("connection refused")
	cache := New(store, time.Hour)

	// Must not panic or propagate.
	cache.Put(context.Background(), "anything", []float32{1, 2})
}

func TestPutSkipsEmptyVector(t *testing.T) {
	store := newKVStore()
	cache := New(store, time.Hour)

	cache.Put(context.Background(), "anything", nil)
	if len(store.data) != 0 {
		t.Errorf("empty vector was stored: %d entries", len(store.data))
	}
}

func TestPutRecordsTTL(t *testing.T) {
	store := newKVStore()
	cache := New(store, 45*time.Minute)

	cache.Put(context.Background(), "anything", []float32{1})
	for _, ttl := range store.ttls {
		if ttl != 45*time.Minute {
			t.Errorf("ttl = %v, want 45m", ttl)
		}
	}
}

func TestVectorCodecRejectsTruncated(t *testing.T) {
	if vec := bytesToVector([]byte("abc")); vec != nil {
		t.Errorf("bytesToVector on truncated input = %v, want nil", vec)
	}
	if vec := bytesToVector(nil); vec != nil {
		t.Errorf("bytesToVector on empty input = %v, want nil", vec)
	}
}
