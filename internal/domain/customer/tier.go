package customer

import "github.com/shopspring/decimal"

// Tier is the loyalty classification derived from a customer's cumulative
// net spend.
type Tier string

const (
	TierNormal Tier = "normal"
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// Tier thresholds, evaluated highest-first. A customer is classified into the
// highest tier whose threshold their cumulative spend meets.
var (
	goldThreshold   = decimal.NewFromInt(30000)
	silverThreshold = decimal.NewFromInt(10000)
	bronzeThreshold = decimal.NewFromInt(3000)
)

// ClassifyTier maps cumulative net spend to a loyalty tier. It is a pure
// function of the total, so recomputing after every settlement keeps the
// stored tier consistent with the stored spend.
func ClassifyTier(cumulativeSpend decimal.Decimal) Tier {
	switch {
	case cumulativeSpend.GreaterThanOrEqual(goldThreshold):
		return TierGold
	case cumulativeSpend.GreaterThanOrEqual(silverThreshold):
		return TierSilver
	case cumulativeSpend.GreaterThanOrEqual(bronzeThreshold):
		return TierBronze
	default:
		return TierNormal
	}
}
