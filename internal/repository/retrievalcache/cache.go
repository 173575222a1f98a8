// Package retrievalcache caches fused retrieval results keyed by the
// normalized query and tier. Retrieval is cheaper than generation but
// still burns two index searches per query; a medium TTL lets repeated
// questions with different phrasing of the same generation step skip
// the index entirely.
package retrievalcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/groundkit/groundkit/internal/db"
	"github.com/groundkit/groundkit/internal/domain"
	"github.com/groundkit/groundkit/internal/metrics"
)

const keyPrefix = domain.KeyPrefix + "retrieval_cache:"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// entry is the persisted shape of one retrieval pass.
type entry struct {
	Candidates    []domain.Candidate `json:"candidates"`
	ExpansionUsed bool               `json:"expansion_used"`
}

// Cache is a medium-TTL retrieval results cache.
type Cache struct {
	store store
	ttl   time.Duration
}

// New creates a retrieval cache.
func New(s store, ttl time.Duration) *Cache {
	return &Cache{store: s, ttl: ttl}
}

// Get returns cached candidates for the query/tier pair. The second
// return reports the cached expansion flag, the third whether the
// lookup hit. Store and decode failures count as misses.
func (c *Cache) Get(ctx context.Context, query string, tier domain.Tier) ([]domain.Candidate, bool, bool) {
	raw, err := c.store.Get(ctx, cacheKey(query, tier))
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			metrics.RetrievalCacheTotal.WithLabelValues("error").Inc()
			return nil, false, false
		}
		metrics.RetrievalCacheTotal.WithLabelValues("miss").Inc()
		return nil, false, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		metrics.RetrievalCacheTotal.WithLabelValues("miss").Inc()
		return nil, false, false
	}
	metrics.RetrievalCacheTotal.WithLabelValues("hit").Inc()
	return e.Candidates, e.ExpansionUsed, true
}

// Put stores one retrieval pass. Encoding or store failures are
// ignored.
func (c *Cache) Put(ctx context.Context, query string, tier domain.Tier, cands []domain.Candidate, expanded bool) {
	raw, err := json.Marshal(entry{Candidates: cands, ExpansionUsed: expanded})
	if err != nil {
		return
	}
	_ = c.store.SetWithTTL(ctx, cacheKey(query, tier), raw, c.ttl)
}

func cacheKey(query string, tier domain.Tier) string {
	norm := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(string(tier) + "\x00" + norm))
	return keyPrefix + hex.EncodeToString(sum[:])
}
