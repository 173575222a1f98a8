package domain

import "fmt"

// Chunk is a bounded contiguous span of a source document, the retrieval
// unit. Chunks are immutable once created; re-ingestion writes a new
// generation and the old one is dropped on swap.
type Chunk struct {
	SourceID   string
	Generation int64
	Index      int // stable order within the source
	Content    string
	Start      int // byte offset of Content within the extracted text
	End        int
	Vector     []float32
	Fallback   bool // vector is a deterministic fallback, not a real embedding
}

// ChunkID returns the stable identity of a chunk within its generation.
func (c *Chunk) ChunkID() string {
	return fmt.Sprintf("%s:%d:%d", c.SourceID, c.Generation, c.Index)
}

// Embedded reports whether the chunk carries a provider embedding and is
// therefore eligible for vector retrieval.
func (c *Chunk) Embedded() bool {
	return len(c.Vector) > 0 && !c.Fallback
}

// Candidate is a retrieval hit: a chunk plus its score and the method that
// produced it.
type Candidate struct {
	ChunkID     string
	SourceID    string
	SourceTitle string
	Index       int
	Content     string
	Score       float64
	Vector      float64 // vector similarity component, 0 if lexical-only
	Lexical     float64 // lexical score component, 0 if vector-only
}
