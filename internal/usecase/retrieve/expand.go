package retrieve

import (
	"regexp"
	"strings"
	"unicode"
)

// versionPattern matches dotted version numbers like 2.5 or 1.10.3.
var versionPattern = regexp.MustCompile(`\b\d+\.\d+(\.\d+)?\b`)

// identifierPattern matches code-like tokens: snake_case, CamelCase
// pairs, or dotted.paths.
var identifierPattern = regexp.MustCompile(`\b(\w+_\w+|[a-z]+[A-Z]\w*|\w+\.\w+\(|\w+\(\))`)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "can": {}, "do": {}, "does": {}, "for": {},
	"from": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "why": {}, "with": {},
	"you": {},
}

// synonyms maps common support-domain terms to near-equivalents used
// for query expansion. Kept small on purpose: broad expansion on a
// lexical index trades precision away fast.
var synonyms = map[string][]string{
	"install":   {"setup", "installation"},
	"setup":     {"install", "configuration"},
	"configure": {"setup", "settings"},
	"error":     {"failure", "issue"},
	"fix":       {"resolve", "repair"},
	"remove":    {"delete", "uninstall"},
	"update":    {"upgrade"},
	"start":     {"launch", "run"},
	"stop":      {"shutdown", "halt"},
	"slow":      {"performance", "latency"},
	"crash":     {"failure", "abort"},
	"login":     {"signin", "authentication"},
	"password":  {"credentials"},
	"connect":   {"connection", "attach"},
	"backup":    {"snapshot", "restore"},
}

// ShouldExpand decides whether a query benefits from synonym
// expansion. Precise queries (quoted phrases, technical markers,
// narrow questions, long queries) are left alone; short and broad
// queries get expanded to improve recall.
func ShouldExpand(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}

	// Quoted phrase: the caller asked for exactly this wording.
	if strings.ContainsRune(q, '"') {
		return false
	}

	lower := strings.ToLower(q)

	// Technical markers: version numbers and code identifiers signal a
	// precise lookup.
	if versionPattern.MatchString(lower) || strings.Contains(lower, "version") {
		return false
	}
	if identifierPattern.MatchString(q) {
		return false
	}

	// Narrow interrogatives ask about one named thing.
	if strings.HasPrefix(lower, "what is ") || strings.HasPrefix(lower, "where is ") {
		return false
	}

	if len(significantTokens(lower)) >= 8 {
		return false
	}

	// Everything surviving the skip gates is a short, generic query
	// that benefits from synonym variants.
	return true
}

// Expand returns the query plus synonym variants for its significant
// tokens, original query first. At most three variants are produced.
func Expand(query string) []string {
	out := []string{query}
	lower := strings.ToLower(query)
	for _, tok := range significantTokens(lower) {
		for _, syn := range synonyms[tok] {
			out = append(out, strings.Replace(lower, tok, syn, 1))
			if len(out) >= 4 {
				return out
			}
		}
	}
	return out
}

// significantTokens returns lowercase word tokens minus stopwords.
func significantTokens(lower string) []string {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := stopwords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}
