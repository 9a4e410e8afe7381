// Package risk contains the position sizer, the pre-execution risk gate, the
// drawdown circuit breaker and the capital-tier table.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/models"
	"github.com/quantara-ai/quantara-go/internal/quant"
)

const (
	// maxTotalExposure rejects new sizing outright once existing positions
	// consume this fraction of the portfolio.
	maxTotalExposure = 0.80
	// maxSinglePositionPct caps (never rejects) one position at this fraction.
	maxSinglePositionPct = 0.10
)

// SizeRejection is a normal control-flow outcome, not an error.
type SizeRejection struct {
	Reason string
}

func (r *SizeRejection) Error() string { return r.Reason }

// Sizer converts a decision plus trade history and market conditions into a
// bounded dollar position.
type Sizer struct {
	logger *logrus.Logger
}

// NewSizer creates a position sizer.
func NewSizer(logger *logrus.Logger) *Sizer {
	return &Sizer{logger: logger}
}

// Size runs the Kelly pipeline for the decision and enforces the exposure
// caps: total exposure above 80% rejects outright; a single position above
// 10% of portfolio is capped to exactly 10%.
func (s *Sizer) Size(
	decision models.Decision,
	stats models.TradeStats,
	mc models.MarketConditions,
	portfolio models.PortfolioState,
) (*models.SizingResult, *SizeRejection) {
	if exposure := portfolio.Exposure(); exposure > maxTotalExposure {
		rej := &SizeRejection{Reason: fmt.Sprintf(
			"total exposure %.0f%% exceeds the %.0f%% limit; no new positions",
			exposure*100, maxTotalExposure*100)}
		s.logger.WithFields(logrus.Fields{
			"user_id":  portfolio.UserID,
			"exposure": exposure,
		}).Warn("Sizing rejected on total exposure")
		return nil, rej
	}

	kelly := quant.KellyFraction(stats)
	base := kelly.Fraction * decision.Confidence
	adjusted, adjustments := quant.AdjustForMarketConditions(base, mc)

	tier := TierFor(DefaultCapitalTiers(), portfolio.Value)
	_, tierPct := TierLimits(tier)
	result := quant.PositionDollars(portfolio.Value, adjusted, tierPct)
	result.Reasoning = fmt.Sprintf("%s | %s | %s",
		kelly.Reasoning, quant.JoinReasons(adjustments), result.Reasoning)

	s.logger.WithFields(logrus.Fields{
		"user_id":     portfolio.UserID,
		"kelly":       kelly.Fraction,
		"adjusted":    adjusted,
		"actual_size": result.ActualSize.StringFixed(2),
		"capped":      result.Capped,
	}).Debug("Position sized")

	return &result, nil
}

// TierLimits narrows sizing to the capital tier selected for the portfolio
// value: the tighter of the tier cap and the default cap wins.
func TierLimits(tier models.CapitalTier) (maxPositions int, maxPositionPct float64) {
	maxPositions = tier.MaxPositions
	maxPositionPct = tier.MaxPositionPct
	if maxPositionPct > maxSinglePositionPct || maxPositionPct == 0 {
		maxPositionPct = maxSinglePositionPct
	}
	return maxPositions, maxPositionPct
}

// zeroDollars is the comparison base for gate checks.
var zeroDollars = decimal.Zero
