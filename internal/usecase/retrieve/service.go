// Package retrieve implements hybrid retrieval: vector similarity and
// lexical BM25 over the live chunk index, fused into one ranked list,
// with adaptive synonym expansion for broad queries.
package retrieve

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/groundkit/groundkit/internal/domain"
	"github.com/groundkit/groundkit/internal/metrics"
)

type searcher interface {
	VectorSearch(ctx context.Context, vec []float32, k int, minSim float64) ([]domain.Candidate, error)
	LexicalSearch(ctx context.Context, query string, k int) ([]domain.Candidate, error)
}

type queryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

type resultCache interface {
	Get(ctx context.Context, query string, tier domain.Tier) ([]domain.Candidate, bool, bool)
	Put(ctx context.Context, query string, tier domain.Tier, cands []domain.Candidate, expanded bool)
}

// TierSettings controls retrieval depth for one tier.
type TierSettings struct {
	Candidates    int
	MinSimilarity float64
	FinalResults  int
}

// Service runs hybrid retrieval.
type Service struct {
	search   searcher
	embedder queryEmbedder
	cache    resultCache
	tiers    map[domain.Tier]TierSettings
	weights  Weights
	logger   *zap.Logger
}

// New creates the retrieval service. Missing tiers fall back to the
// basic tier's settings. A nil cache disables result caching.
func New(search searcher, embedder queryEmbedder, cache resultCache, tiers map[domain.Tier]TierSettings, weights Weights, logger *zap.Logger) *Service {
	if weights.Vector == 0 && weights.Lexical == 0 {
		weights = DefaultWeights
	}
	return &Service{
		search:   search,
		embedder: embedder,
		cache:    cache,
		tiers:    tiers,
		weights:  weights,
		logger:   logger,
	}
}

// Result is one retrieval pass.
type Result struct {
	Candidates    []domain.Candidate
	ExpansionUsed bool
	ElapsedMS     int64
}

// Retrieve returns the fused candidate list for a query at the given
// tier.
func (s *Service) Retrieve(ctx context.Context, query string, tier domain.Tier) (Result, error) {
	settings, ok := s.tiers[tier]
	if !ok {
		settings = s.tiers[domain.TierBasic]
	}
	start := time.Now()

	if s.cache != nil {
		if cands, expanded, ok := s.cache.Get(ctx, query, tier); ok {
			return Result{
				Candidates:    cands,
				ExpansionUsed: expanded,
				ElapsedMS:     time.Since(start).Milliseconds(),
			}, nil
		}
	}

	vec, fallback := s.embedder.Embed(ctx, query)
	if fallback {
		s.logger.Warn("query embedded with fallback vector", zap.String("query", query))
	}

	vecCands, err := s.search.VectorSearch(ctx, vec, settings.Candidates, settings.MinSimilarity)
	if err != nil {
		return Result{}, fmt.Errorf("vector search: %w", err)
	}

	expand := ShouldExpand(query)
	lexCands, err := s.lexical(ctx, query, settings.Candidates, expand)
	if err != nil {
		return Result{}, fmt.Errorf("lexical search: %w", err)
	}

	merged := Merge(vecCands, lexCands, s.weights, settings.FinalResults)
	if s.cache != nil {
		s.cache.Put(ctx, query, tier, merged, expand)
	}
	elapsed := time.Since(start)
	metrics.RetrievalDuration.WithLabelValues(string(tier)).Observe(elapsed.Seconds())

	return Result{
		Candidates:    merged,
		ExpansionUsed: expand,
		ElapsedMS:     elapsed.Milliseconds(),
	}, nil
}

// lexical runs BM25 over the query and, when expansion applies, its
// synonym variants, keeping the best score per chunk.
func (s *Service) lexical(ctx context.Context, query string, k int, expand bool) ([]domain.Candidate, error) {
	variants := []string{query}
	if expand {
		variants = Expand(query)
	}

	best := make(map[string]domain.Candidate)
	for _, v := range variants {
		cands, err := s.search.LexicalSearch(ctx, v, k)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			if prev, ok := best[c.ChunkID]; !ok || c.Lexical > prev.Lexical {
				best[c.ChunkID] = c
			}
		}
	}

	out := make([]domain.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	return out, nil
}
