// Package answer orchestrates grounded generation: cache lookup,
// retrieval, prompt assembly, tier-tuned generation, artifact cleanup,
// and grounding verification.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/groundkit/groundkit/internal/domain"
	"github.com/groundkit/groundkit/internal/usecase/retrieve"
)

// notFoundText is returned verbatim when retrieval produces nothing.
// The generator is never called in that case.
const notFoundText = "I could not find this in the knowledge base."

type retriever interface {
	Retrieve(ctx context.Context, query string, tier domain.Tier) (retrieve.Result, error)
}

type generator interface {
	Generate(ctx context.Context, prompt string, params domain.GenParams) (string, error)
}

type answerCache interface {
	Get(ctx context.Context, query string, tier domain.Tier) (*domain.Answer, bool)
	Put(ctx context.Context, query string, tier domain.Tier, ans *domain.Answer)
}

type queryLog interface {
	Append(ctx context.Context, rec *domain.QueryRecord) error
}

// Options tunes generation behavior.
type Options struct {
	GenTimeout time.Duration       // per provider call
	MaxRetries int                 // extra attempts on transient failure
	MaxTokens  map[domain.Tier]int // per-tier token budget overrides
}

func (o *Options) applyDefaults() {
	if o.GenTimeout <= 0 {
		o.GenTimeout = 30 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 1
	}
}

// Service answers queries against the knowledge base.
type Service struct {
	retriever retriever
	generator generator
	cache     answerCache
	log       queryLog
	opts      Options
	logger    *zap.Logger
}

// New creates the answer service.
func New(r retriever, g generator, cache answerCache, log queryLog, opts Options, logger *zap.Logger) *Service {
	opts.applyDefaults()
	return &Service{
		retriever: r,
		generator: g,
		cache:     cache,
		log:       log,
		opts:      opts,
		logger:    logger,
	}
}

// Answer produces a grounded answer for the query at the given tier.
func (s *Service) Answer(ctx context.Context, query string, tier domain.Tier) (*domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrValidation)
	}
	start := time.Now()

	if cached, ok := s.cache.Get(ctx, query, tier); ok {
		cached.Diagnostics.CacheHit = true
		cached.Diagnostics.TotalMS = time.Since(start).Milliseconds()
		return cached, nil
	}

	res, err := s.retriever.Retrieve(ctx, query, tier)
	if err != nil {
		return nil, err
	}

	qt := DetectQueryType(query)
	diag := domain.Diagnostics{
		Tier:           tier,
		QueryType:      qt,
		RetrievalMS:    res.ElapsedMS,
		CandidateCount: len(res.Candidates),
		ExpansionUsed:  res.ExpansionUsed,
	}

	if len(res.Candidates) == 0 {
		diag.NotFound = true
		diag.TotalMS = time.Since(start).Milliseconds()
		ans := &domain.Answer{Text: notFoundText, Diagnostics: diag}
		s.logRecord(ctx, query, tier, ans, nil)
		return ans, nil
	}

	prompt := BuildPrompt(query, tier, res.Candidates)
	params := ParamsFor(tier, qt)
	if budget, ok := s.opts.MaxTokens[tier]; ok && budget > 0 {
		params.MaxTokens = budget
	}

	text, err := s.generate(ctx, prompt, params)
	if err != nil {
		return nil, err
	}
	text = Cleanup(text)

	// The model can also conclude the context is insufficient.
	if strings.Contains(text, notFoundText) {
		diag.NotFound = true
	}

	diag.Verified = true
	if tier == domain.TierAdvanced || tier == domain.TierComprehensive {
		if !diag.NotFound && !Verify(text, res.Candidates) {
			diag.Verified = false
			text += verifyCaveat
		}
	}

	diag.TotalMS = time.Since(start).Milliseconds()
	ans := &domain.Answer{
		Text:        text,
		Sources:     sourceRefs(res.Candidates),
		Diagnostics: diag,
	}

	if !diag.NotFound {
		s.cache.Put(ctx, query, tier, ans)
	}
	s.logRecord(ctx, query, tier, ans, res.Candidates)
	return ans, nil
}

// generate calls the provider under a per-call deadline, retrying
// transient failures up to the configured limit.
func (s *Service) generate(ctx context.Context, prompt string, params domain.GenParams) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.GenTimeout)
		text, err := s.generator.Generate(callCtx, prompt, params)
		cancel()
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, domain.ErrServiceUnavailable) {
			return "", err
		}
		lastErr = err
		if attempt < s.opts.MaxRetries {
			s.logger.Warn("generation failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
	}
	return "", lastErr
}

func (s *Service) logRecord(ctx context.Context, query string, tier domain.Tier, ans *domain.Answer, candidates []domain.Candidate) {
	chunkIDs := make([]string, len(candidates))
	for i, c := range candidates {
		chunkIDs[i] = c.ChunkID
	}
	rec := &domain.QueryRecord{
		Query:          query,
		Tier:           tier,
		Timestamp:      time.Now().UTC(),
		ChunkIDs:       chunkIDs,
		Answer:         ans.Text,
		RetrievalMS:    ans.Diagnostics.RetrievalMS,
		TotalMS:        ans.Diagnostics.TotalMS,
		CacheHit:       ans.Diagnostics.CacheHit,
		ExpansionUsed:  ans.Diagnostics.ExpansionUsed,
		CandidateCount: ans.Diagnostics.CandidateCount,
	}
	if err := s.log.Append(ctx, rec); err != nil {
		s.logger.Warn("query log append failed", zap.Error(err))
	}
}

func sourceRefs(candidates []domain.Candidate) []domain.SourceRef {
	refs := make([]domain.SourceRef, len(candidates))
	for i, c := range candidates {
		refs[i] = domain.SourceRef{
			ChunkID:     c.ChunkID,
			SourceID:    c.SourceID,
			SourceTitle: c.SourceTitle,
			Index:       c.Index,
			Score:       c.Score,
		}
	}
	return refs
}
