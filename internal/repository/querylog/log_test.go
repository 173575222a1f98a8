package querylog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/groundkit/groundkit/internal/db"
	"github.com/groundkit/groundkit/internal/domain"
)

type kvStore struct {
	data map[string][]byte
}

func newKVStore() *kvStore {
	return &kvStore{data: make(map[string][]byte)}
}

func (s *kvStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *kvStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.data[key] = value
	return nil
}

func (s *kvStore) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var out []string
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out, nil
}

func TestAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	log := New(newKVStore(), 30*24*time.Hour)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, q := range []string{"first", "second", "third"} {
		rec := domain.QueryRecord{
			Query:     q,
			Tier:      domain.TierBasic,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			ChunkIDs:  []string{"c-1"},
			Answer:    "answer to " + q,
		}
		if err := log.Append(ctx, &rec); err != nil {
			t.Fatalf("Append %q: %v", q, err)
		}
	}

	got, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent returned %d records, want 3", len(got))
	}
	// Newest first.
	if got[0].Query != "third" || got[2].Query != "first" {
		t.Errorf("order = [%s %s %s], want newest first", got[0].Query, got[1].Query, got[2].Query)
	}
	if got[0].Answer != "answer to third" || len(got[0].ChunkIDs) != 1 {
		t.Errorf("record = %+v, want fields round-tripped", got[0])
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	ctx := context.Background()
	log := New(newKVStore(), time.Hour)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := domain.QueryRecord{Query: "q", Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := log.Append(ctx, &rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := log.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Recent returned %d records, want 2", len(got))
	}
}

func TestAppendSetsTimestamp(t *testing.T) {
	ctx := context.Background()
	log := New(newKVStore(), time.Hour)

	rec := domain.QueryRecord{Query: "untimestamped"}
	if err := log.Append(ctx, &rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec.Timestamp.IsZero() {
		t.Error("Append left Timestamp zero")
	}
}

func TestRecentSkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	store := newKVStore()
	log := New(store, time.Hour)

	rec := domain.QueryRecord{Query: "good", Timestamp: time.Now().UTC()}
	if err := log.Append(ctx, &rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	store.data[keyPrefix+"9999999999999999999:bad"] = []byte("{not json")

	got, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Query != "good" {
		t.Errorf("records = %+v, want corrupt entry skipped", got)
	}
}

func TestRecentEmpty(t *testing.T) {
	log := New(newKVStore(), time.Hour)

	got, err := log.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recent returned %d records, want 0", len(got))
	}
}
