// Package chunk persists chunk rows keyed by source, generation, and
// index, and owns the generation swap that keeps the last good version
// live until a re-ingestion fully succeeds.
package chunk

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/groundkit/groundkit/internal/db"
	"github.com/groundkit/groundkit/internal/domain"
)

// KeyPrefix is the chunk row namespace; the retrieval index is built on it.
var KeyPrefix = domain.KeyPrefix + "chunk:"

// store is the consumer interface for chunk rows (ISP).
type store interface {
	HSetNX(ctx context.Context, key, field, value string) (bool, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements chunk persistence over hash rows.
type Repo struct {
	store store
}

// New creates a chunk repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func chunkKey(sourceID string, gen int64, index int) string {
	return fmt.Sprintf("%s%s:%d:%d", KeyPrefix, sourceID, gen, index)
}

// PutBatch persists a batch of chunks in one pipelined round-trip. Chunks
// are written already bound to their source ID and stay invisible to
// retrieval (live=0) until Promote swaps the generation.
func (r *Repo) PutBatch(ctx context.Context, title string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		items[i] = db.HashSetItem{
			Key:    chunkKey(c.SourceID, c.Generation, c.Index),
			Fields: buildFields(title, c),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("put chunk batch: %w", err)
	}
	return nil
}

// Promote makes generation gen the live chunk set for the source and
// removes every other generation. Prior chunks stay untouched until this
// point, so a failed run never destroys the last good version.
func (r *Repo) Promote(ctx context.Context, sourceID string, gen int64) (int, error) {
	keys, err := r.store.Scan(ctx, KeyPrefix+sourceID+":*")
	if err != nil {
		return 0, fmt.Errorf("scan chunks of %s: %w", sourceID, err)
	}

	genPrefix := fmt.Sprintf("%s%s:%d:", KeyPrefix, sourceID, gen)

	var stale []string
	promoted := 0
	for _, key := range keys {
		if strings.HasPrefix(key, genPrefix) {
			if err := r.store.HSet(ctx, key, map[string]string{"live": "1"}); err != nil {
				return promoted, fmt.Errorf("promote chunk %s: %w", key, err)
			}
			promoted++
			continue
		}
		stale = append(stale, key)
	}

	if len(stale) > 0 {
		if err := r.store.Del(ctx, stale...); err != nil {
			return promoted, fmt.Errorf("drop stale generations of %s: %w", sourceID, err)
		}
	}
	return promoted, nil
}

// DeleteGeneration removes all chunks of one generation, used to clean up
// after a failed ingestion run.
func (r *Repo) DeleteGeneration(ctx context.Context, sourceID string, gen int64) error {
	keys, err := r.store.Scan(ctx, fmt.Sprintf("%s%s:%d:*", KeyPrefix, sourceID, gen))
	if err != nil {
		return fmt.Errorf("scan generation %d of %s: %w", gen, sourceID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete generation %d of %s: %w", gen, sourceID, err)
	}
	return nil
}

// DeleteAll removes every chunk of a source (explicit source delete cascade).
func (r *Repo) DeleteAll(ctx context.Context, sourceID string) error {
	keys, err := r.store.Scan(ctx, KeyPrefix+sourceID+":*")
	if err != nil {
		return fmt.Errorf("scan chunks of %s: %w", sourceID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", sourceID, err)
	}
	return nil
}

// Link backfills the source binding on any chunk row missing it, as an
// idempotent set-if-null repair. Chunks are written already bound, so this
// normally links nothing; it exists to repair legacy rows and is safe to
// run concurrently for the same source. Returns the number of rows that
// actually needed linking.
func (r *Repo) Link(ctx context.Context, sourceID string, gen int64) (int, error) {
	keys, err := r.store.Scan(ctx, fmt.Sprintf("%s%s:%d:*", KeyPrefix, sourceID, gen))
	if err != nil {
		return 0, fmt.Errorf("scan generation %d of %s: %w", gen, sourceID, err)
	}

	linked := 0
	for _, key := range keys {
		set, err := r.store.HSetNX(ctx, key, "source", sourceID)
		if err != nil {
			return linked, fmt.Errorf("link chunk %s: %w", key, err)
		}
		if set {
			linked++
		}
	}
	return linked, nil
}

// Get loads one chunk row by identity. Used by tests and diagnostics.
func (r *Repo) Get(ctx context.Context, sourceID string, gen int64, index int) (domain.Chunk, error) {
	m, err := r.store.HGetAll(ctx, chunkKey(sourceID, gen, index))
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("get chunk: %w", err)
	}
	if len(m) == 0 {
		return domain.Chunk{}, db.ErrKeyNotFound
	}
	return parseFields(sourceID, gen, index, m), nil
}

// Count returns the number of persisted chunks for a generation.
func (r *Repo) Count(ctx context.Context, sourceID string, gen int64) (int, error) {
	keys, err := r.store.Scan(ctx, fmt.Sprintf("%s%s:%d:*", KeyPrefix, sourceID, gen))
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return len(keys), nil
}

func parseFields(sourceID string, gen int64, index int, m map[string]string) domain.Chunk {
	c := domain.Chunk{
		SourceID:   sourceID,
		Generation: gen,
		Index:      index,
		Content:    m["content"],
		Fallback:   m["fallback"] == "1",
	}
	c.Start, _ = strconv.Atoi(m["start"])
	c.End, _ = strconv.Atoi(m["end"])
	if v, ok := m["vector"]; ok {
		c.Vector = bytesToVector(v)
	}
	return c
}
