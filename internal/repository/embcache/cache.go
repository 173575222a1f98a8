// Package embcache stores computed embedding vectors keyed by content
// hash so repeated chunks and queries skip the provider entirely.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"time"

	"github.com/groundkit/groundkit/internal/db"
	"github.com/groundkit/groundkit/internal/domain"
	"github.com/groundkit/groundkit/internal/metrics"
)

const keyPrefix = domain.KeyPrefix + "emb_cache:"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache is a TTL-bound embedding cache over the shared store.
type Cache struct {
	store store
	ttl   time.Duration
}

// New creates an embedding cache. A zero ttl means entries never expire.
func New(s store, ttl time.Duration) *Cache {
	return &Cache{store: s, ttl: ttl}
}

// Get returns the cached vector for text, or false on a miss. Store
// errors are treated as misses so a degraded cache never blocks
// embedding.
func (c *Cache) Get(ctx context.Context, text string) ([]float32, bool) {
	raw, err := c.store.Get(ctx, cacheKey(text))
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
			return nil, false
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	vec := bytesToVector(raw)
	if len(vec) == 0 {
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	return vec, true
}

// Put stores the vector for text. Failures are ignored: the cache is an
// optimization, not a dependency.
func (c *Cache) Put(ctx context.Context, text string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	_ = c.store.SetWithTTL(ctx, cacheKey(text), vectorToBytes(vec), c.ttl)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func vectorToBytes(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func bytesToVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec
}
