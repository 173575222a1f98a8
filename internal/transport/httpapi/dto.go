package httpapi

import (
	"time"

	"github.com/groundkit/groundkit/internal/domain"
)

type createSourceRequest struct {
	Origin          string `json:"origin"` // "upload" or "url"
	Title           string `json:"title,omitempty"`
	URL             string `json:"url,omitempty"`
	RefreshEveryMin int    `json:"refresh_every_min,omitempty"`
}

type sourceResponse struct {
	ID             string    `json:"id"`
	Origin         string    `json:"origin"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	ChunkCount     int       `json:"chunk_count"`
	EmbeddingCount int       `json:"embedding_count"`
	FallbackCount  int       `json:"fallback_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func sourceToResponse(src domain.Source) sourceResponse {
	return sourceResponse{
		ID:             src.ID,
		Origin:         string(src.Origin),
		Title:          src.Title,
		Status:         string(src.Status),
		Error:          src.Error,
		ChunkCount:     src.ChunkCount,
		EmbeddingCount: src.EmbeddingCount,
		FallbackCount:  src.FallbackCount,
		CreatedAt:      src.CreatedAt,
		UpdatedAt:      src.UpdatedAt,
	}
}

type searchRequest struct {
	Query string `json:"query"`
	Tier  string `json:"tier,omitempty"`
}

type searchResponse struct {
	Answer      string              `json:"answer"`
	Sources     []sourceRefResponse `json:"sources"`
	Diagnostics diagnosticsResponse `json:"diagnostics"`
}

type sourceRefResponse struct {
	ChunkID     string  `json:"chunk_id"`
	SourceID    string  `json:"source_id"`
	SourceTitle string  `json:"source_title"`
	Index       int     `json:"index"`
	Score       float64 `json:"score"`
}

type diagnosticsResponse struct {
	Tier           string `json:"tier"`
	QueryType      string `json:"query_type"`
	RetrievalMS    int64  `json:"retrieval_ms"`
	TotalMS        int64  `json:"total_ms"`
	CandidateCount int    `json:"candidate_count"`
	ExpansionUsed  bool   `json:"expansion_used"`
	CacheHit       bool   `json:"cache_hit"`
	Verified       bool   `json:"verified"`
	NotFound       bool   `json:"not_found"`
}

func answerToResponse(ans *domain.Answer) searchResponse {
	refs := make([]sourceRefResponse, len(ans.Sources))
	for i, ref := range ans.Sources {
		refs[i] = sourceRefResponse{
			ChunkID:     ref.ChunkID,
			SourceID:    ref.SourceID,
			SourceTitle: ref.SourceTitle,
			Index:       ref.Index,
			Score:       ref.Score,
		}
	}
	d := ans.Diagnostics
	return searchResponse{
		Answer:  ans.Text,
		Sources: refs,
		Diagnostics: diagnosticsResponse{
			Tier:           string(d.Tier),
			QueryType:      string(d.QueryType),
			RetrievalMS:    d.RetrievalMS,
			TotalMS:        d.TotalMS,
			CandidateCount: d.CandidateCount,
			ExpansionUsed:  d.ExpansionUsed,
			CacheHit:       d.CacheHit,
			Verified:       d.Verified,
			NotFound:       d.NotFound,
		},
	}
}

type queryRecordResponse struct {
	Query          string    `json:"query"`
	Tier           string    `json:"tier"`
	Timestamp      time.Time `json:"timestamp"`
	ChunkIDs       []string  `json:"chunk_ids"`
	Answer         string    `json:"answer"`
	RetrievalMS    int64     `json:"retrieval_ms"`
	TotalMS        int64     `json:"total_ms"`
	CacheHit       bool      `json:"cache_hit"`
	ExpansionUsed  bool      `json:"expansion_used"`
	CandidateCount int       `json:"candidate_count"`
}

func queryRecordToResponse(rec domain.QueryRecord) queryRecordResponse {
	return queryRecordResponse{
		Query:          rec.Query,
		Tier:           string(rec.Tier),
		Timestamp:      rec.Timestamp,
		ChunkIDs:       rec.ChunkIDs,
		Answer:         rec.Answer,
		RetrievalMS:    rec.RetrievalMS,
		TotalMS:        rec.TotalMS,
		CacheHit:       rec.CacheHit,
		ExpansionUsed:  rec.ExpansionUsed,
		CandidateCount: rec.CandidateCount,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
