// Package chunker splits extracted text into overlapping spans sized for
// retrieval. It prefers sentence and paragraph boundaries and processes
// oversized inputs in successive bounded windows so memory per call stays
// flat while output is unbounded.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Defaults. Overlap is roughly 20% of the chunk size so context survives
// chunk boundaries.
const (
	DefaultChunkSize   = 500
	DefaultOverlap     = 100
	DefaultWindowLimit = 1000 // max chunks produced per internal window
)

// Span is one chunk of the input with byte offsets into the original text.
type Span struct {
	Content string
	Start   int
	End     int
	Index   int
}

// Chunker splits text into overlapping spans.
type Chunker struct {
	size        int
	overlap     int
	windowLimit int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithSize sets the target chunk size in bytes.
func WithSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithWindowLimit caps the number of chunks cut per internal window.
func WithWindowLimit(limit int) Option {
	return func(c *Chunker) {
		if limit > 0 {
			c.windowLimit = limit
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:        DefaultChunkSize,
		overlap:     DefaultOverlap,
		windowLimit: DefaultWindowLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into overlapping spans. Empty or whitespace-only input
// yields nil. Inputs larger than one window are processed window by window
// with the overlap carried across the seam, so every byte of the input is
// covered by at least one span regardless of total length.
func (c *Chunker) Chunk(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	stride := c.size - c.overlap
	windowBytes := c.windowLimit*stride + c.overlap

	var spans []Span
	start := 0
	for start < len(text) {
		end := start + windowBytes
		if end >= len(text) {
			end = len(text)
		} else {
			end = runeFloor(text, end)
		}

		spans = c.chunkWindow(text, start, end, spans)

		if end == len(text) {
			break
		}
		// Next window re-covers the trailing overlap of this one.
		start = end - c.overlap
		start = runeFloor(text, start)
	}

	return spans
}

// chunkWindow cuts spans from text[base:limit], appending to spans with a
// continuing index. Offsets are absolute within text.
func (c *Chunker) chunkWindow(text string, base, limit int, spans []Span) []Span {
	start := base
	for start < limit {
		end := start + c.size
		if end >= limit {
			end = limit
		} else {
			if b := boundaryBefore(text, start, end); b > start {
				end = b
			}
			end = runeFloor(text, end)
		}

		content := text[start:end]
		if strings.TrimSpace(content) != "" {
			idx := len(spans)
			spans = append(spans, Span{Content: content, Start: start, End: end, Index: idx})
		}

		if end == limit {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = runeFloor(text, next)
	}
	return spans
}

// boundaryBefore searches backwards from end for a sentence or paragraph
// boundary, but no further than halfway back into the chunk. Returns the
// position just after the boundary, or 0 if none found.
func boundaryBefore(text string, start, end int) int {
	floor := start + (end-start)/2

	// Paragraph break wins over sentence end.
	if i := strings.LastIndex(text[floor:end], "\n\n"); i >= 0 {
		return floor + i + 2
	}
	for i := end - 1; i > floor; i-- {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && !isSpace(text[i+1]) {
				continue
			}
			return i + 1
		case '\n':
			return i + 1
		}
	}
	return 0
}

// runeFloor moves pos back to the nearest rune start so slicing never
// splits a multi-byte character.
func runeFloor(s string, pos int) int {
	for pos > 0 && pos < len(s) && !utf8.RuneStart(s[pos]) {
		pos--
	}
	return pos
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
