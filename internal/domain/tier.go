package domain

import "fmt"

// Tier is a named quality/latency profile controlling candidate counts,
// similarity thresholds, and generation verbosity.
type Tier string

const (
	TierBasic         Tier = "basic"
	TierEnhanced      Tier = "enhanced"
	TierAdvanced      Tier = "advanced"
	TierComprehensive Tier = "comprehensive"
)

// Tiers lists all tiers in ascending quality order.
var Tiers = []Tier{TierBasic, TierEnhanced, TierAdvanced, TierComprehensive}

// ParseTier validates a tier string; empty defaults to basic.
func ParseTier(s string) (Tier, error) {
	if s == "" {
		return TierBasic, nil
	}
	switch Tier(s) {
	case TierBasic, TierEnhanced, TierAdvanced, TierComprehensive:
		return Tier(s), nil
	default:
		return "", fmt.Errorf("unknown tier %q: %w", s, ErrValidation)
	}
}

// QueryType classifies a query for generation-parameter selection.
type QueryType string

const (
	QueryProcedural      QueryType = "procedural"
	QueryDefinitional    QueryType = "definitional"
	QueryTroubleshooting QueryType = "troubleshooting"
	QueryGeneral         QueryType = "general"
)

// GenParams are generation-service sampling parameters. All profiles stay
// near-deterministic to keep answers inside the supplied context.
type GenParams struct {
	Temperature   float32
	TopP          float32
	RepeatPenalty float32
	MaxTokens     int
}
