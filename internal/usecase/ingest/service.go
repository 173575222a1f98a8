// Package ingest runs the source ingestion pipeline: fetch, extract,
// chunk, embed, persist, promote. Chunks are written under a fresh
// generation and only made live once the whole run succeeds, so the
// last good version survives crashes and failed re-ingestions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundkit/groundkit/internal/chunker"
	"github.com/groundkit/groundkit/internal/domain"
	"github.com/groundkit/groundkit/internal/extract"
	"github.com/groundkit/groundkit/internal/metrics"
	"github.com/groundkit/groundkit/internal/usecase/embedding"
)

type sourceRepo interface {
	Create(ctx context.Context, src *domain.Source) error
	Get(ctx context.Context, id string) (domain.Source, error)
	SetCounts(ctx context.Context, id string, chunks, embeddings, fallbacks int) error
	SetGeneration(ctx context.Context, id string, gen int64) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Source, error)
}

type chunkRepo interface {
	PutBatch(ctx context.Context, title string, chunks []domain.Chunk) error
	Promote(ctx context.Context, sourceID string, gen int64) (int, error)
	DeleteGeneration(ctx context.Context, sourceID string, gen int64) error
	DeleteAll(ctx context.Context, sourceID string) error
	Link(ctx context.Context, sourceID string, gen int64) (int, error)
}

type stateTracker interface {
	Advance(ctx context.Context, id string, next domain.State) error
	Fail(ctx context.Context, id, reason string) error
	Reset(ctx context.Context, id string) error
}

type embedder interface {
	EmbedBatch(ctx context.Context, texts []string) []embedding.Result
}

type fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type extractor interface {
	File(ctx context.Context, path string, fn extract.BlockFunc) error
}

// Options tunes the ingestion pipeline.
type Options struct {
	EmbedBatchSize       int
	FailureRateThreshold float64 // fraction of fallback vectors that fails the run
}

func (o *Options) applyDefaults() {
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = 50
	}
	if o.FailureRateThreshold <= 0 {
		o.FailureRateThreshold = 0.5
	}
}

// Service owns source registration, ingestion runs, and deletion.
type Service struct {
	sources   sourceRepo
	chunks    chunkRepo
	tracker   stateTracker
	extractor extractor
	fetcher   fetcher
	chunker   *chunker.Chunker
	embedder  embedder
	opts      Options
	logger    *zap.Logger
}

// New creates the ingestion service.
func New(
	sources sourceRepo,
	chunks chunkRepo,
	tracker stateTracker,
	ext extractor,
	f fetcher,
	ch *chunker.Chunker,
	emb embedder,
	opts Options,
	logger *zap.Logger,
) *Service {
	opts.applyDefaults()
	return &Service{
		sources:   sources,
		chunks:    chunks,
		tracker:   tracker,
		extractor: ext,
		fetcher:   f,
		chunker:   ch,
		embedder:  emb,
		opts:      opts,
		logger:    logger,
	}
}

// Submit registers a new source in PENDING state and returns it. The
// caller enqueues the returned ID for processing.
func (s *Service) Submit(ctx context.Context, origin domain.Origin, title, contentRef string, refreshEvery time.Duration) (domain.Source, error) {
	src, err := domain.NewSource(uuid.NewString(), origin, title, contentRef)
	if err != nil {
		return domain.Source{}, err
	}
	src.RefreshEvery = refreshEvery
	if err := s.sources.Create(ctx, &src); err != nil {
		return domain.Source{}, fmt.Errorf("create source: %w", err)
	}
	s.logger.Info("source registered",
		zap.String("source_id", src.ID),
		zap.String("origin", string(origin)),
		zap.String("title", src.Title))
	return src, nil
}

// Refresh resets a READY or FAILED source to PENDING so the next
// pipeline run re-ingests it under a new generation.
func (s *Service) Refresh(ctx context.Context, id string) error {
	return s.tracker.Reset(ctx, id)
}

// Delete removes a source, all of its chunks across generations, and,
// for uploads, the staged file on disk.
func (s *Service) Delete(ctx context.Context, id string) error {
	src, err := s.sources.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.chunks.DeleteAll(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.sources.Delete(ctx, id); err != nil {
		return err
	}
	if src.Origin == domain.OriginUpload && src.ContentRef != "" {
		if err := os.Remove(src.ContentRef); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove uploaded file",
				zap.String("source_id", id),
				zap.String("path", src.ContentRef),
				zap.Error(err))
		}
	}
	s.logger.Info("source deleted", zap.String("source_id", id))
	return nil
}

// Recover returns a source stranded mid-pipeline (e.g. by a crash or
// shutdown) to PENDING so a worker can pick it up again. Sources
// already PENDING or in a terminal state are left alone.
func (s *Service) Recover(ctx context.Context, id string) error {
	src, err := s.sources.Get(ctx, id)
	if err != nil {
		return err
	}
	if src.Status == domain.StatePending || src.Status.Terminal() {
		return nil
	}
	if err := s.tracker.Fail(ctx, id, "interrupted: run did not complete"); err != nil {
		return err
	}
	return s.tracker.Reset(ctx, id)
}

// Ingest runs the full pipeline for one PENDING source. On failure the
// new generation is discarded and the previously promoted chunks stay
// live. Cancellation is honored at batch boundaries and keeps partial
// progress for the next attempt's cleanup.
func (s *Service) Ingest(ctx context.Context, id string) error {
	src, err := s.sources.Get(ctx, id)
	if err != nil {
		return err
	}
	if src.Status != domain.StatePending {
		// Duplicate enqueue; the source was already picked up or
		// finished. Failing it here would clobber a good state.
		return fmt.Errorf("%w: ingest requires PENDING, have %s", domain.ErrIllegalTransition, src.Status)
	}
	start := time.Now()
	gen := start.UnixNano()

	err = s.run(ctx, &src, gen)
	if err != nil {
		if errors.Is(err, domain.ErrIngestCancelled) {
			metrics.IngestDuration.WithLabelValues(string(src.Origin), "cancelled").Observe(time.Since(start).Seconds())
			return err
		}
		s.failRun(ctx, &src, gen, err)
		metrics.IngestDuration.WithLabelValues(string(src.Origin), "failed").Observe(time.Since(start).Seconds())
		return err
	}

	metrics.IngestDuration.WithLabelValues(string(src.Origin), "ok").Observe(time.Since(start).Seconds())
	return nil
}

func (s *Service) run(ctx context.Context, src *domain.Source, gen int64) error {
	if err := s.tracker.Advance(ctx, src.ID, domain.StateFetching); err != nil {
		return err
	}

	path := src.ContentRef
	if src.Origin == domain.OriginURL {
		fetched, err := s.fetcher.Fetch(ctx, src.ContentRef)
		if err != nil {
			return domain.NewIngestFailure(domain.StateFetching, "fetch failed", err)
		}
		defer os.Remove(fetched)
		path = fetched
	}

	if err := s.tracker.Advance(ctx, src.ID, domain.StateExtracting); err != nil {
		return err
	}
	if err := s.tracker.Advance(ctx, src.ID, domain.StateChunking); err != nil {
		return err
	}
	if err := s.tracker.Advance(ctx, src.ID, domain.StateEmbedding); err != nil {
		return err
	}

	counts, err := s.process(ctx, src, gen, path)
	if err != nil {
		return err
	}
	if counts.total == 0 {
		return domain.NewIngestFailure(domain.StateExtracting, "no extractable content", domain.ErrUnsupportedFormat)
	}

	rate := float64(counts.fallbacks) / float64(counts.total)
	if rate > s.opts.FailureRateThreshold {
		cause := fmt.Sprintf("embedding failure rate %.0f%% exceeds threshold", rate*100)
		return domain.NewIngestFailure(domain.StateEmbedding, cause, domain.ErrServiceUnavailable)
	}

	if _, err := s.chunks.Promote(ctx, src.ID, gen); err != nil {
		return domain.NewIngestFailure(domain.StateEmbedding, "promote failed", err)
	}
	if _, err := s.chunks.Link(ctx, src.ID, gen); err != nil {
		s.logger.Warn("chunk link repair failed",
			zap.String("source_id", src.ID),
			zap.Error(err))
	}
	if err := s.sources.SetGeneration(ctx, src.ID, gen); err != nil {
		return domain.NewIngestFailure(domain.StateEmbedding, "record generation failed", err)
	}
	if err := s.sources.SetCounts(ctx, src.ID, counts.total, counts.embedded, counts.fallbacks); err != nil {
		return domain.NewIngestFailure(domain.StateEmbedding, "record counts failed", err)
	}
	if err := s.tracker.Advance(ctx, src.ID, domain.StateReady); err != nil {
		return err
	}

	metrics.IngestChunksTotal.WithLabelValues(string(src.Origin)).Add(float64(counts.total))
	s.logger.Info("source ingested",
		zap.String("source_id", src.ID),
		zap.Int64("generation", gen),
		zap.Int("chunks", counts.total),
		zap.Int("fallbacks", counts.fallbacks))
	return nil
}

type runCounts struct {
	total     int
	embedded  int
	fallbacks int
}

// process streams extracted blocks through the chunker and embedder,
// persisting vectors batch by batch under the new generation.
func (s *Service) process(ctx context.Context, src *domain.Source, gen int64, path string) (runCounts, error) {
	var (
		counts     runCounts
		nextIndex  int
		offsetBase int
		batch      []chunker.Span
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return domain.NewIngestFailure(domain.StateEmbedding, "cancelled at batch boundary", domain.ErrIngestCancelled)
		}

		texts := make([]string, len(batch))
		for i, sp := range batch {
			texts[i] = sp.Content
		}
		results := s.embedder.EmbedBatch(ctx, texts)

		chunks := make([]domain.Chunk, len(batch))
		for i, sp := range batch {
			chunks[i] = domain.Chunk{
				SourceID:   src.ID,
				Generation: gen,
				Index:      sp.Index,
				Content:    sp.Content,
				Start:      sp.Start,
				End:        sp.End,
				Vector:     results[i].Vector,
				Fallback:   results[i].Fallback,
			}
			if results[i].Fallback {
				counts.fallbacks++
			} else {
				counts.embedded++
			}
		}
		if err := s.chunks.PutBatch(ctx, src.Title, chunks); err != nil {
			return domain.NewIngestFailure(domain.StateEmbedding, "persist chunks failed", err)
		}
		counts.total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := s.extractor.File(ctx, path, func(block string) error {
		for _, sp := range s.chunker.Chunk(block) {
			sp.Index = nextIndex
			sp.Start += offsetBase
			sp.End += offsetBase
			nextIndex++
			batch = append(batch, sp)
			if len(batch) >= s.opts.EmbedBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		offsetBase += len(block)
		return nil
	})
	if err != nil {
		var ingestErr *domain.IngestFailure
		if errors.As(err, &ingestErr) {
			return counts, err
		}
		return counts, domain.NewIngestFailure(domain.StateExtracting, "extraction failed", err)
	}
	if err := flush(); err != nil {
		return counts, err
	}
	return counts, nil
}

// failRun marks the source FAILED and discards the aborted generation.
func (s *Service) failRun(ctx context.Context, src *domain.Source, gen int64, cause error) {
	reason := cause.Error()
	var ingestErr *domain.IngestFailure
	if errors.As(cause, &ingestErr) {
		reason = ingestErr.Cause
	}
	if err := s.tracker.Fail(ctx, src.ID, reason); err != nil {
		s.logger.Error("failed to mark source failed",
			zap.String("source_id", src.ID),
			zap.Error(err))
	}
	if err := s.chunks.DeleteGeneration(ctx, src.ID, gen); err != nil {
		s.logger.Warn("failed to discard aborted generation",
			zap.String("source_id", src.ID),
			zap.Int64("generation", gen),
			zap.Error(err))
	}
}
