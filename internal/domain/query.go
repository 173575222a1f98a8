package domain

import "time"

// QueryRecord is an append-only log entry for one answered query.
type QueryRecord struct {
	Query          string
	Tier           Tier
	Timestamp      time.Time
	ChunkIDs       []string
	Answer         string
	RetrievalMS    int64
	TotalMS        int64
	CacheHit       bool
	ExpansionUsed  bool
	CandidateCount int
}

// SourceRef is a citation pointing at the chunk that grounds a claim.
type SourceRef struct {
	ChunkID     string
	SourceID    string
	SourceTitle string
	Index       int
	Score       float64
}

// Answer is the result of the generation orchestrator.
type Answer struct {
	Text        string
	Sources     []SourceRef
	Diagnostics Diagnostics
}

// Diagnostics carries per-query performance and grounding details.
type Diagnostics struct {
	Tier           Tier
	QueryType      QueryType
	RetrievalMS    int64
	TotalMS        int64
	CandidateCount int
	ExpansionUsed  bool
	CacheHit       bool
	Verified       bool
	NotFound       bool
}
