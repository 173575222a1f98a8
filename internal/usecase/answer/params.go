package answer

import "github.com/groundkit/groundkit/internal/domain"

// paramsTable maps tier and query type to sampling parameters. All
// entries stay low-temperature: answers must come from the supplied
// context, not the model's imagination. Procedural and troubleshooting
// answers run coldest since step ordering matters; definitional and
// general answers get slightly more headroom at higher tiers.
var paramsTable = map[domain.Tier]map[domain.QueryType]domain.GenParams{
	domain.TierBasic: {
		domain.QueryProcedural:      {Temperature: 0.0, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 512},
		domain.QueryTroubleshooting: {Temperature: 0.0, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 512},
		domain.QueryDefinitional:    {Temperature: 0.1, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 512},
		domain.QueryGeneral:         {Temperature: 0.1, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 512},
	},
	domain.TierEnhanced: {
		domain.QueryProcedural:      {Temperature: 0.0, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 1024},
		domain.QueryTroubleshooting: {Temperature: 0.1, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 1024},
		domain.QueryDefinitional:    {Temperature: 0.2, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 1024},
		domain.QueryGeneral:         {Temperature: 0.2, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 1024},
	},
	domain.TierAdvanced: {
		domain.QueryProcedural:      {Temperature: 0.1, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 2048},
		domain.QueryTroubleshooting: {Temperature: 0.1, TopP: 0.9, RepeatPenalty: 1.1, MaxTokens: 2048},
		domain.QueryDefinitional:    {Temperature: 0.2, TopP: 0.95, RepeatPenalty: 1.1, MaxTokens: 2048},
		domain.QueryGeneral:         {Temperature: 0.2, TopP: 0.95, RepeatPenalty: 1.1, MaxTokens: 2048},
	},
	domain.TierComprehensive: {
		domain.QueryProcedural:      {Temperature: 0.1, TopP: 0.95, RepeatPenalty: 1.05, MaxTokens: 4096},
		domain.QueryTroubleshooting: {Temperature: 0.1, TopP: 0.95, RepeatPenalty: 1.05, MaxTokens: 4096},
		domain.QueryDefinitional:    {Temperature: 0.3, TopP: 0.95, RepeatPenalty: 1.05, MaxTokens: 4096},
		domain.QueryGeneral:         {Temperature: 0.3, TopP: 0.95, RepeatPenalty: 1.05, MaxTokens: 4096},
	},
}

// ParamsFor returns the generation parameters for a tier/query-type
// pair. Unknown tiers resolve to basic. The table's token budgets are
// defaults; the configured per-tier budget takes precedence when set.
func ParamsFor(tier domain.Tier, qt domain.QueryType) domain.GenParams {
	row, ok := paramsTable[tier]
	if !ok {
		row = paramsTable[domain.TierBasic]
	}
	p, ok := row[qt]
	if !ok {
		p = row[domain.QueryGeneral]
	}
	return p
}
