package answer

import (
	"regexp"
	"strings"
)

var (
	// Provider artifacts occasionally leak into completions.
	thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	leadingLabel      = regexp.MustCompile(`(?i)^(answer|response)\s*:\s*`)
	multiBlank        = regexp.MustCompile(`\n{3,}`)
)

// Cleanup strips generation artifacts: reasoning blocks, echoed
// "Answer:" labels, stray code fences around plain prose, and excess
// blank lines.
func Cleanup(text string) string {
	out := thinkBlockPattern.ReplaceAllString(text, "")
	out = strings.TrimSpace(out)
	out = leadingLabel.ReplaceAllString(out, "")

	// A completion fully wrapped in a fence is prose, not code.
	if strings.HasPrefix(out, "```") && strings.HasSuffix(out, "```") {
		inner := strings.TrimPrefix(out, "```")
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
			inner = inner[nl+1:]
		}
		out = strings.TrimSuffix(inner, "```")
	}

	out = multiBlank.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
