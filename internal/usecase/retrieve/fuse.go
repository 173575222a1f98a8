package retrieve

import (
	"sort"

	"github.com/groundkit/groundkit/internal/domain"
)

// Weights balances the two retrieval signals in the fused score.
type Weights struct {
	Vector  float64
	Lexical float64
}

// DefaultWeights favors semantic similarity but keeps enough lexical
// signal to surface exact-term matches the embedding space misses.
var DefaultWeights = Weights{Vector: 0.7, Lexical: 0.3}

// Merge fuses vector and lexical candidate lists into a single ranked
// list of at most limit entries. Vector scores are already in [0,1];
// lexical BM25 scores are max-normalized before weighting. Duplicates
// are collapsed by chunk ID keeping both signals. Ordering is
// deterministic: fused score desc, then vector score desc, then chunk
// ID asc.
func Merge(vector, lexical []domain.Candidate, w Weights, limit int) []domain.Candidate {
	byID := make(map[string]domain.Candidate, len(vector)+len(lexical))

	for _, c := range vector {
		byID[c.ChunkID] = c
	}

	var maxLex float64
	for _, c := range lexical {
		if c.Lexical > maxLex {
			maxLex = c.Lexical
		}
	}
	for _, c := range lexical {
		if maxLex > 0 {
			c.Lexical /= maxLex
		}
		if prev, ok := byID[c.ChunkID]; ok {
			prev.Lexical = c.Lexical
			byID[c.ChunkID] = prev
			continue
		}
		byID[c.ChunkID] = c
	}

	merged := make([]domain.Candidate, 0, len(byID))
	for _, c := range byID {
		c.Score = w.Vector*c.Vector + w.Lexical*c.Lexical
		merged = append(merged, c)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].Vector != merged[j].Vector {
			return merged[i].Vector > merged[j].Vector
		}
		return merged[i].ChunkID < merged[j].ChunkID
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
