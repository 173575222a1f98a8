package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunk_Empty(t *testing.T) {
	c := New()
	if got := c.Chunk(""); got != nil {
		t.Errorf("expected nil for empty input, got %d spans", len(got))
	}
	if got := c.Chunk("   \n\t  "); got != nil {
		t.Errorf("expected nil for whitespace input, got %d spans", len(got))
	}
}

func TestChunk_ShortInput(t *testing.T) {
	c := New()
	text := "A single short paragraph."

	spans := c.Chunk(text)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Content != text {
		t.Errorf("expected content %q, got %q", text, spans[0].Content)
	}
	if spans[0].Start != 0 || spans[0].End != len(text) {
		t.Errorf("expected offsets [0,%d), got [%d,%d)", len(text), spans[0].Start, spans[0].End)
	}
}

func TestChunk_CoversEveryByte(t *testing.T) {
	c := New(WithSize(100), WithOverlap(20))
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)

	spans := c.Chunk(text)
	if len(spans) < 2 {
		t.Fatalf("expected multiple spans, got %d", len(spans))
	}

	covered := make([]bool, len(text))
	for _, sp := range spans {
		if sp.Content != text[sp.Start:sp.End] {
			t.Fatalf("span %d content does not match its offsets", sp.Index)
		}
		for i := sp.Start; i < sp.End; i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Fatalf("byte %d not covered by any span", i)
		}
	}
}

func TestChunk_ConsecutiveSpansOverlap(t *testing.T) {
	c := New(WithSize(100), WithOverlap(20))
	text := strings.Repeat("Sentence one here. Sentence two follows. ", 30)

	spans := c.Chunk(text)
	for i := 1; i < len(spans); i++ {
		if spans[i].Start >= spans[i-1].End {
			t.Errorf("span %d starts at %d, after span %d ends at %d: no overlap",
				i, spans[i].Start, i-1, spans[i-1].End)
		}
	}
}

func TestChunk_IndexesSequential(t *testing.T) {
	c := New(WithSize(80), WithOverlap(10))
	text := strings.Repeat("Words and more words fill the page. ", 40)

	spans := c.Chunk(text)
	for i, sp := range spans {
		if sp.Index != i {
			t.Errorf("span at position %d has index %d", i, sp.Index)
		}
	}
}

func TestChunk_PrefersSentenceBoundary(t *testing.T) {
	c := New(WithSize(60), WithOverlap(10))
	text := "Sentence number one is almost sixty characters long okay. Then the second sentence follows and continues onward."

	spans := c.Chunk(text)
	if len(spans) < 2 {
		t.Fatalf("expected at least 2 spans, got %d", len(spans))
	}
	if !strings.HasSuffix(spans[0].Content, ". ") && !strings.HasSuffix(spans[0].Content, ".") {
		t.Errorf("expected first span to end at a sentence boundary, got %q", spans[0].Content)
	}
}

func TestChunk_PrefersParagraphBoundary(t *testing.T) {
	c := New(WithSize(80), WithOverlap(10))
	para := strings.Repeat("word ", 12)
	text := para + "\n\n" + strings.Repeat("tail ", 30)

	spans := c.Chunk(text)
	if len(spans) < 2 {
		t.Fatalf("expected at least 2 spans, got %d", len(spans))
	}
	if !strings.HasSuffix(spans[0].Content, "\n\n") {
		t.Errorf("expected first span to end at the paragraph break, got %q", spans[0].Content)
	}
}

func TestChunk_LargeInputCrossesWindows(t *testing.T) {
	// Tiny window so a modest input needs several of them.
	c := New(WithSize(50), WithOverlap(10), WithWindowLimit(3))
	text := strings.Repeat("Filler text for the window seam test. ", 60)

	spans := c.Chunk(text)

	covered := make([]bool, len(text))
	for _, sp := range spans {
		for i := sp.Start; i < sp.End; i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Fatalf("byte %d lost at a window seam", i)
		}
	}
	for i, sp := range spans {
		if sp.Index != i {
			t.Fatalf("index %d out of order after window seam", sp.Index)
		}
	}
}

func TestChunk_NeverSplitsRunes(t *testing.T) {
	c := New(WithSize(20), WithOverlap(5))
	text := strings.Repeat("日本語のテキストです。", 20)

	for _, sp := range c.Chunk(text) {
		if !utf8.ValidString(sp.Content) {
			t.Fatalf("span %d contains a split rune: %q", sp.Index, sp.Content)
		}
	}
}

func TestNew_OverlapClamped(t *testing.T) {
	c := New(WithSize(100), WithOverlap(150))
	if c.Overlap() >= c.Size() {
		t.Errorf("overlap %d not clamped below size %d", c.Overlap(), c.Size())
	}
}
