// Package source persists Source rows and their lifecycle status.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/groundkit/groundkit/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "source:"

// store is the consumer interface for source rows (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements source persistence over hash rows.
type Repo struct {
	store store
}

// New creates a source repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func sourceKey(id string) string { return keyPrefix + id }

// Create persists a new source row, recording the initial PENDING timestamp.
func (r *Repo) Create(ctx context.Context, src *domain.Source) error {
	fields := buildFields(src)
	fields[transitionField(src.Status)] = src.CreatedAt.Format(time.RFC3339Nano)
	if err := r.store.HSet(ctx, sourceKey(src.ID), fields); err != nil {
		return fmt.Errorf("create source %s: %w", src.ID, err)
	}
	return nil
}

// Get returns a source by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Source, error) {
	m, err := r.store.HGetAll(ctx, sourceKey(id))
	if err != nil {
		return domain.Source{}, fmt.Errorf("get source %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.Source{}, domain.ErrSourceNotFound
	}
	return parseFields(id, m), nil
}

// UpdateState records a lifecycle transition with its timestamp. The
// transition is validated by the lifecycle tracker before this is called.
func (r *Repo) UpdateState(ctx context.Context, id string, to domain.State, cause string) error {
	now := time.Now().UTC()
	fields := map[string]string{
		"status":             string(to),
		"error":              cause,
		"updated_at":         now.Format(time.RFC3339Nano),
		transitionField(to): now.Format(time.RFC3339Nano),
	}
	if err := r.store.HSet(ctx, sourceKey(id), fields); err != nil {
		return fmt.Errorf("update state of %s to %s: %w", id, to, err)
	}
	return nil
}

// SetCounts updates the progress counters polled by status queries.
func (r *Repo) SetCounts(ctx context.Context, id string, chunks, embeddings, fallbacks int) error {
	fields := map[string]string{
		"chunk_count":     itoa(chunks),
		"embedding_count": itoa(embeddings),
		"fallback_count":  itoa(fallbacks),
		"updated_at":      time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.HSet(ctx, sourceKey(id), fields); err != nil {
		return fmt.Errorf("set counts of %s: %w", id, err)
	}
	return nil
}

// SetGeneration records the live chunk generation after a successful swap.
func (r *Repo) SetGeneration(ctx context.Context, id string, gen int64) error {
	fields := map[string]string{
		"generation": fmt.Sprintf("%d", gen),
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.HSet(ctx, sourceKey(id), fields); err != nil {
		return fmt.Errorf("set generation of %s: %w", id, err)
	}
	return nil
}

// Delete removes the source row. Chunk cascade happens in the ingest service.
func (r *Repo) Delete(ctx context.Context, id string) error {
	exists, err := r.store.Exists(ctx, sourceKey(id))
	if err != nil {
		return fmt.Errorf("check source %s: %w", id, err)
	}
	if !exists {
		return domain.ErrSourceNotFound
	}
	if err := r.store.Del(ctx, sourceKey(id)); err != nil {
		return fmt.Errorf("delete source %s: %w", id, err)
	}
	return nil
}

// List returns all sources. Used by the refresh scheduler; the corpus of
// sources is small relative to chunks, so a scan is acceptable here.
func (r *Repo) List(ctx context.Context) ([]domain.Source, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}

	out := make([]domain.Source, 0, len(keys))
	for _, key := range keys {
		m, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load source %s: %w", key, err)
		}
		if len(m) == 0 {
			continue
		}
		out = append(out, parseFields(strings.TrimPrefix(key, keyPrefix), m))
	}
	return out, nil
}

func transitionField(s domain.State) string {
	return "ts_" + strings.ToLower(string(s))
}
