// Package embedding turns text into vectors through a cache-first,
// concurrency-bounded batch pipeline. Provider failures degrade to
// deterministic fallback vectors instead of failing the caller.
package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/groundkit/groundkit/internal/domain"
	"github.com/groundkit/groundkit/internal/metrics"
)

// Provider computes embeddings for a batch of texts, preserving order.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorCache is a content-addressed vector cache.
type VectorCache interface {
	Get(ctx context.Context, text string) ([]float32, bool)
	Put(ctx context.Context, text string, vec []float32)
}

// Result is one embedded text. Fallback marks vectors that were
// synthesized locally because the provider was unavailable.
type Result struct {
	Vector   []float32
	Fallback bool
}

// Options tunes the batch pipeline.
type Options struct {
	Dimensions  int
	SubBatch    int           // texts per provider call
	Concurrency int           // max in-flight provider calls, shared across all callers
	CallTimeout time.Duration // per provider call
	RatePerSec  float64       // provider request rate, 0 disables limiting
}

func (o *Options) applyDefaults() {
	if o.Dimensions <= 0 {
		o.Dimensions = domain.DefaultDimensions
	}
	if o.SubBatch <= 0 {
		o.SubBatch = 50
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 10
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
}

// BatchEmbedder embeds texts with caching, rate limiting, and a shared
// concurrency pool. It never returns an error: texts the provider
// cannot embed get a deterministic fallback vector so ingestion always
// makes progress.
type BatchEmbedder struct {
	provider Provider
	cache    VectorCache
	sem      chan struct{}
	limiter  *rate.Limiter
	opts     Options
	logger   *zap.Logger
}

// NewBatchEmbedder creates a batch embedder. The semaphore is owned by
// the embedder, so passing the same instance to every caller yields a
// process-wide concurrency ceiling.
func NewBatchEmbedder(provider Provider, cache VectorCache, opts Options, logger *zap.Logger) *BatchEmbedder {
	opts.applyDefaults()
	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return &BatchEmbedder{
		provider: provider,
		cache:    cache,
		sem:      make(chan struct{}, opts.Concurrency),
		limiter:  limiter,
		opts:     opts,
		logger:   logger,
	}
}

// EmbedBatch embeds texts in input order. The returned slice always has
// len(texts) entries; entries the provider failed on carry a fallback
// vector and Fallback=true.
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))

	// Cache pass first so only misses hit the provider.
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := b.cache.Get(ctx, text); ok {
			results[i] = Result{Vector: vec}
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	for start := 0; start < len(missTexts); start += b.opts.SubBatch {
		end := start + b.opts.SubBatch
		if end > len(missTexts) {
			end = len(missTexts)
		}
		sub := missTexts[start:end]

		vecs, err := b.callProvider(ctx, sub)
		if err != nil {
			b.logger.Warn("embedding provider failed, using fallback vectors",
				zap.Int("count", len(sub)),
				zap.Error(err))
			for j, text := range sub {
				results[missIdx[start+j]] = Result{
					Vector:   domain.FallbackVector(text, b.opts.Dimensions),
					Fallback: true,
				}
				metrics.EmbeddingFallbacksTotal.Inc()
			}
			continue
		}

		for j, vec := range vecs {
			text := sub[j]
			if len(vec) == 0 {
				results[missIdx[start+j]] = Result{
					Vector:   domain.FallbackVector(text, b.opts.Dimensions),
					Fallback: true,
				}
				metrics.EmbeddingFallbacksTotal.Inc()
				continue
			}
			results[missIdx[start+j]] = Result{Vector: vec}
			b.cache.Put(ctx, text, vec)
		}
	}

	return results
}

// Embed embeds a single text, used on the query path. Returns the
// vector and whether it is a fallback.
func (b *BatchEmbedder) Embed(ctx context.Context, text string) ([]float32, bool) {
	res := b.EmbedBatch(ctx, []string{text})
	return res[0].Vector, res[0].Fallback
}

func (b *BatchEmbedder) callProvider(ctx context.Context, texts []string) ([][]float32, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	select {
	case b.sem <- struct{}{}:
		defer func() { <-b.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	callCtx, cancel := context.WithTimeout(ctx, b.opts.CallTimeout)
	defer cancel()

	vecs, err := b.provider.EmbedBatch(callCtx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		// Length mismatch means we cannot map vectors to texts.
		return nil, domain.ErrServiceUnavailable
	}
	return vecs, nil
}
