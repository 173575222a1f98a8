package domain

import (
	"fmt"
	"time"
)

// Origin identifies how a source entered the system.
type Origin string

const (
	// OriginUpload is a document uploaded by a user.
	OriginUpload Origin = "upload"
	// OriginURL is a registered external web page.
	OriginURL Origin = "url"
)

// ParseOrigin validates an origin string.
func ParseOrigin(s string) (Origin, error) {
	switch Origin(s) {
	case OriginUpload, OriginURL:
		return Origin(s), nil
	default:
		return "", fmt.Errorf("unknown origin %q: %w", s, ErrValidation)
	}
}

// State is a source lifecycle state.
type State string

// Lifecycle states. READY and FAILED are terminal; FAILED leaves via retry.
const (
	StatePending    State = "PENDING"
	StateFetching   State = "FETCHING"
	StateExtracting State = "EXTRACTING"
	StateChunking   State = "CHUNKING"
	StateEmbedding  State = "EMBEDDING"
	StateReady      State = "READY"
	StateFailed     State = "FAILED"
)

// transitions is the legal lifecycle edge set. FAILED is reachable from any
// non-terminal state; READY and FAILED go back to PENDING on refresh/retry.
var transitions = map[State][]State{
	StatePending:    {StateFetching, StateFailed},
	StateFetching:   {StateExtracting, StateFailed},
	StateExtracting: {StateChunking, StateFailed},
	StateChunking:   {StateEmbedding, StateFailed},
	StateEmbedding:  {StateReady, StateFailed},
	StateReady:      {StatePending},
	StateFailed:     {StatePending},
}

// CanTransition reports whether s -> next is a legal lifecycle edge.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends a processing run.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Source is a document or registered web page tracked by the ingestion
// pipeline. Chunks reference it by ID and generation; re-ingestion bumps
// the generation and swaps chunks atomically so the last good version
// survives a failed run.
type Source struct {
	ID             string
	Origin         Origin
	Title          string
	ContentRef     string // file path (upload) or URL
	Status         State
	Error          string // human-readable failure cause, empty unless FAILED
	Generation     int64  // live chunk generation
	ChunkCount     int
	EmbeddingCount int
	FallbackCount  int // chunks carrying a fallback vector
	RefreshEvery   time.Duration
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewSource validates and creates a Source in PENDING state.
func NewSource(id string, origin Origin, title, contentRef string) (Source, error) {
	if id == "" {
		return Source{}, fmt.Errorf("source ID is required: %w", ErrValidation)
	}
	if contentRef == "" {
		return Source{}, fmt.Errorf("content ref is required: %w", ErrValidation)
	}
	if title == "" {
		title = contentRef
	}
	now := time.Now().UTC()
	return Source{
		ID:         id,
		Origin:     origin,
		Title:      title,
		ContentRef: contentRef,
		Status:     StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Transition holds one recorded lifecycle transition.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// SourceStatus is the caller-visible processing status of a source.
type SourceStatus struct {
	State          State
	ChunkCount     int
	EmbeddingCount int
	FallbackCount  int
	Error          string
	UpdatedAt      time.Time
}
