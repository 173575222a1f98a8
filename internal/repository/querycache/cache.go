// Package querycache caches complete answers keyed by the normalized
// query and tier, so identical questions within the TTL window skip
// retrieval and generation.
package querycache

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

const keyPrefix = domain.KeyPrefix + "query_cache:"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache is a short-TTL answer cache.
type Cache struct {
	store store
	ttl   time.Duration
}

// New creates a query cache.
func New(s store, ttl time.Duration) *Cache {
	return &Cache{store: s, ttl: ttl}
}

// Get returns a cached answer for the query/tier pair, or false on a
// miss. Any store or decode failure counts as a miss.
func (c *Cache) Get(ctx context.Context, query string, tier domain.Tier) (*domain.Answer, bool) {
	raw, err := c.store.Get(ctx, cacheKey(query, tier))
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			metrics.QueryCacheTotal.WithLabelValues("error").Inc()
			return nil, false
		}
		metrics.QueryCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	var ans domain.Answer
	if err := json.Unmarshal(raw, &ans); err != nil {
		metrics.QueryCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.QueryCacheTotal.WithLabelValues("hit").Inc()
	return &ans, true
}

// Put stores an answer. Encoding or store failures are ignored.
func (c *Cache) Put(ctx context.Context, query string, tier domain.Tier, ans *domain.Answer) {
	if ans == nil {
		return
	}
	raw, err := json.Marshal(ans)
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
