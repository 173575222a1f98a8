// Package querylog keeps a rolling record of answered queries for
// offline analysis. Entries expire on their own; nothing reads them on
// the hot path.
package querylog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/groundkit/groundkit/internal/domain"
)

const keyPrefix = domain.KeyPrefix + "qlog:"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Log is an append-only query record sink.
type Log struct {
	store store
	ttl   time.Duration
}

// New creates a query log with the given retention.
func New(s store, ttl time.Duration) *Log {
	return &Log{store: s, ttl: ttl}
}

// Append records one answered query. Errors are returned but callers
// typically log and continue; the log is not load-bearing.
func (l *Log) Append(ctx context.Context, rec *domain.QueryRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	key := fmt.Sprintf("%s%d:%s", keyPrefix, rec.Timestamp.UnixNano(), uuid.NewString()[:8])
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode query record: %w", err)
	}
	if err := l.store.SetWithTTL(ctx, key, raw, l.ttl); err != nil {
		return fmt.Errorf("store query record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]domain.QueryRecord, error) {
	keys, err := l.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan query log: %w", err)
	}
	// Keys embed the timestamp, so lexicographic descending order is
	// newest first for same-width nanos.
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]domain.QueryRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := l.store.Get(ctx, key)
		if err != nil {
			continue // expired between scan and read
		}
		var rec domain.QueryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
