package answer

import (
	"fmt"
	"strings"

	"github.com/groundkit/groundkit/internal/domain"
)

// verbosityHint adjusts answer length and depth per tier.
var verbosityHint = map[domain.Tier]string{
	domain.TierBasic:         "Answer in two or three sentences.",
	domain.TierEnhanced:      "Answer in one or two short paragraphs.",
	domain.TierAdvanced:      "Give a thorough answer with the relevant details from the context.",
	domain.TierComprehensive: "Give a complete, structured answer covering every relevant detail in the context, with examples where the context provides them.",
}

// BuildPrompt renders the grounded prompt: numbered context passages
// followed by the question and citation instructions. The model is told
// to answer only from the passages and to say so when they don't cover
// the question.
func BuildPrompt(query string, tier domain.Tier, candidates []domain.Candidate) string {
	var b strings.Builder

	b.WriteString("You are a support assistant answering strictly from the provided context.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Use only the numbered context passages below. Do not use outside knowledge.\n")
	b.WriteString("- Cite passages inline as [Source N] after each claim they support.\n")
	b.WriteString("- If the passages do not contain the answer, reply exactly: ")
	b.WriteString("\"I could not find this in the knowledge base.\"\n")
	b.WriteString("- ")
	b.WriteString(verbosityHint[tier])
	b.WriteString("\n\nContext:\n")

	for i, c := range candidates {
		fmt.Fprintf(&b, "[Source %d] (%s)\n%s\n\n", i+1, c.SourceTitle, strings.TrimSpace(c.Content))
	}

	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\nAnswer:")
	return b.String()
}
