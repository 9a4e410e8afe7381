package risk

import (
	"github.com/shopspring/decimal"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// DefaultCapitalTiers is the ordered band table keyed by portfolio value.
// The final tier has MaxValue zero, the unbounded catch-all, so the lookup
// is total.
func DefaultCapitalTiers() []models.CapitalTier {
	return []models.CapitalTier{
		{Tier: 1, MinValue: decimal.Zero, MaxValue: decimal.NewFromInt(10_000), MaxPositions: 3, MaxPositionPct: 0.05, RiskLevel: "conservative"},
		{Tier: 2, MinValue: decimal.NewFromInt(10_000), MaxValue: decimal.NewFromInt(50_000), MaxPositions: 5, MaxPositionPct: 0.08, RiskLevel: "conservative"},
		{Tier: 3, MinValue: decimal.NewFromInt(50_000), MaxValue: decimal.NewFromInt(250_000), MaxPositions: 10, MaxPositionPct: 0.10, RiskLevel: "moderate"},
		{Tier: 4, MinValue: decimal.NewFromInt(250_000), MaxValue: decimal.NewFromInt(1_000_000), MaxPositions: 15, MaxPositionPct: 0.10, RiskLevel: "moderate"},
		{Tier: 5, MinValue: decimal.NewFromInt(1_000_000), MaxValue: decimal.Zero, MaxPositions: 20, MaxPositionPct: 0.10, RiskLevel: "aggressive"},
	}
}

// TierFor selects the band covering a portfolio value. The catch-all final
// tier guarantees a match for any non-negative value.
func TierFor(tiers []models.CapitalTier, value decimal.Decimal) models.CapitalTier {
	for _, t := range tiers {
		unbounded := t.MaxValue.IsZero()
		if value.GreaterThanOrEqual(t.MinValue) && (unbounded || value.LessThan(t.MaxValue)) {
			return t
		}
	}
	// Out-of-order tables still resolve to the last band.
	return tiers[len(tiers)-1]
}
