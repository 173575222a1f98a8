package answer

import (
	"strings"

	"github.com/groundkit/groundkit/internal/domain"
)

// DetectQueryType classifies a query so generation parameters can be
// tuned to it. Classification is keyword-based and checked in priority
// order: troubleshooting signals win over procedural, which win over
// definitional.
func DetectQueryType(query string) domain.QueryType {
	q := strings.ToLower(query)

	for _, kw := range []string{"error", "fail", "crash", "broken", "not work", "doesn't", "won't", "cannot", "can't", "issue", "problem", "fix", "troubleshoot"} {
		if strings.Contains(q, kw) {
			return domain.QueryTroubleshooting
		}
	}

	for _, kw := range []string{"how to", "how do", "how can", "steps", "install", "setup", "set up", "configure", "create", "deploy", "migrate"} {
		if strings.Contains(q, kw) {
			return domain.QueryProcedural
		}
	}

	for _, kw := range []string{"what is", "what are", "define", "definition", "meaning", "explain", "describe", "difference between"} {
		if strings.Contains(q, kw) {
			return domain.QueryDefinitional
		}
	}

	return domain.QueryGeneral
}
