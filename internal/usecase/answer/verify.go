package answer

import (
	"strings"
	"unicode"

	"github.com/groundkit/groundkit/internal/domain"
)

// verifyCaveat is appended when an answer fails grounding verification.
const verifyCaveat = "\n\nNote: parts of this answer could not be verified against the knowledge base."

// minOverlap is the fraction of a sentence's significant words that
// must appear in the context for the sentence to count as grounded.
const minOverlap = 0.3

// Verify checks each answer sentence for word overlap with the context
// passages. Returns true when every substantive sentence is grounded.
// Short sentences (under four significant words) are connective tissue
// and skipped.
func Verify(text string, candidates []domain.Candidate) bool {
	contextWords := make(map[string]struct{})
	for _, c := range candidates {
		for _, w := range splitWords(c.Content) {
			contextWords[w] = struct{}{}
		}
	}
	if len(contextWords) == 0 {
		return false
	}

	for _, sentence := range splitSentences(text) {
		words := splitWords(sentence)
		if len(words) < 4 {
			continue
		}
		matched := 0
		for _, w := range words {
			if _, ok := contextWords[w]; ok {
				matched++
			}
		}
		if float64(matched)/float64(len(words)) < minOverlap {
			return false
		}
	}
	return true
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// splitWords lowercases and keeps words of three or more letters;
// citation markers like [Source 2] are dropped with the punctuation.
func splitWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 && f != "source" {
			out = append(out, f)
		}
	}
	return out
}
