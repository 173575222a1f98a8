// Package retrieval runs lexical and vector queries over the live chunk
// index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/groundkit/groundkit/internal/db"
	"github.com/groundkit/groundkit/internal/domain"
	chunkrepo "github.com/groundkit/groundkit/internal/repository/chunk"
)

// IndexName is the FT index over chunk rows.
var IndexName = domain.KeyPrefix + "chunks_idx"

// liveFilter restricts every query to the promoted chunk generation.
const liveFilter = "@live:{1}"

var returnFields = []string{"content", "source", "title", "idx"}

// store is the consumer interface for retrieval (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo implements hybrid retrieval queries.
type Repo struct {
	store store
}

// New creates a retrieval repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// HNSWConfig holds index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// EnsureIndex creates the chunk FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, dim int, hnsw HNSWConfig) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(IndexName).
		Prefix(chunkrepo.KeyPrefix).
		Text("content").
		Tag("source").
		Tag("live").
		Numeric("idx").
		VectorHNSW("vector", dim, hnsw.M, hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// VectorSearch returns up to k live chunks by cosine similarity to vec,
// dropping candidates below minSim.
func (r *Repo) VectorSearch(ctx context.Context, vec []float32, k int, minSim float64) ([]domain.Candidate, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		Filter:       liveFilter,
		Vector:       vec,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	out := make([]domain.Candidate, 0, len(res.Entries))
	for _, e := range res.Entries {
		if e.Score < minSim {
			continue
		}
		c := entryToCandidate(e)
		c.Vector = e.Score
		out = append(out, c)
	}
	return out, nil
}

// LexicalSearch returns up to k live chunks by BM25 term overlap.
func (r *Repo) LexicalSearch(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	res, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    IndexName,
		Query:        query,
		Filter:       liveFilter,
		TopK:         k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}

	out := make([]domain.Candidate, 0, len(res.Entries))
	for _, e := range res.Entries {
		c := entryToCandidate(e)
		c.Lexical = e.Score
		out = append(out, c)
	}
	return out, nil
}

func entryToCandidate(e db.SearchEntry) domain.Candidate {
	idx, _ := strconv.Atoi(e.Fields["idx"])
	return domain.Candidate{
		ChunkID:     strings.TrimPrefix(e.Key, chunkrepo.KeyPrefix),
		SourceID:    e.Fields["source"],
		SourceTitle: e.Fields["title"],
		Index:       idx,
		Content:     e.Fields["content"],
		Score:       e.Score,
	}
}
