// Package quant holds the stateless position-sizing math: Kelly-fraction
// computation, market-condition damping and portfolio statistics.
package quant

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// ConfidenceBand classifies how much history backs a Kelly estimate. It only
// affects the reasoning text, never the numeric fraction.
type ConfidenceBand string

const (
	ConfidenceLow    ConfidenceBand = "low"
	ConfidenceMedium ConfidenceBand = "medium"
	ConfidenceHigh   ConfidenceBand = "high"
)

// KellyResult is the outcome of a Kelly-fraction computation. Fraction is the
// half-Kelly recommendation; RawFraction is the clamped full-Kelly value it
// was derived from.
type KellyResult struct {
	Fraction      float64
	RawFraction   float64
	ExpectedValue float64
	Confidence    ConfidenceBand
	Reasoning     string
}

// KellyFraction computes the recommended capital fraction from a trade
// history: (p*b - q) / b with p the win rate, q = 1-p and b the win/loss
// payoff ratio. The raw fraction is clamped to [0,1] and then halved; the
// half-Kelly damping is deliberate policy, not an approximation.
func KellyFraction(stats models.TradeStats) KellyResult {
	if stats.TotalTrades == 0 {
		return KellyResult{
			Confidence: ConfidenceLow,
			Reasoning:  "no trade history; cannot size a position without observed outcomes",
		}
	}

	avgLoss := stats.AvgLoss
	if avgLoss == 0 {
		return KellyResult{
			Confidence: confidenceForSamples(stats.TotalTrades),
			Reasoning:  "average loss is zero; payoff ratio undefined, treating history as invalid",
		}
	}

	p := stats.WinRate()
	q := 1 - p
	b := stats.AvgWin / absFloat(avgLoss)
	if b == 0 {
		return KellyResult{
			Confidence: confidenceForSamples(stats.TotalTrades),
			Reasoning:  "average win is zero; no edge to size against",
		}
	}

	raw := (p*b - q) / b
	if raw < 0 {
		raw = 0
	}
	if raw > 1 {
		raw = 1
	}

	// Expected value per trade; AvgLoss is signed negative.
	ev := p*stats.AvgWin + q*avgLoss

	band := confidenceForSamples(stats.TotalTrades)
	if ev <= 0 {
		return KellyResult{
			RawFraction:   raw,
			ExpectedValue: ev,
			Confidence:    band,
			Reasoning: fmt.Sprintf(
				"expected value %.2f is non-positive over %d trades; declining to allocate capital",
				ev, stats.TotalTrades),
		}
	}

	half := raw / 2

	return KellyResult{
		Fraction:      half,
		RawFraction:   raw,
		ExpectedValue: ev,
		Confidence:    band,
		Reasoning: fmt.Sprintf(
			"win rate %.0f%%, payoff ratio %.2f over %d trades: raw Kelly %.1f%%, recommending %.1f%% (50%% Kelly), %s confidence",
			p*100, b, stats.TotalTrades, raw*100, half*100, band),
	}
}

func confidenceForSamples(n int) ConfidenceBand {
	switch {
	case n < 30:
		return ConfidenceLow
	case n < 100:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// AdjustForMarketConditions damps a base capital fraction by independent
// multiplicative reduction factors for volatility, market regime and recent
// drawdown. Each triggered rule contributes one reasoning line.
func AdjustForMarketConditions(base float64, mc models.MarketConditions) (float64, []string) {
	adjusted := base
	var reasons []string

	switch {
	case mc.Volatility > 30:
		adjusted *= 0.5
		reasons = append(reasons, fmt.Sprintf("volatility %.1f%% above 30%%: halving size", mc.Volatility))
	case mc.Volatility > 20:
		adjusted *= 0.75
		reasons = append(reasons, fmt.Sprintf("volatility %.1f%% above 20%%: reducing size to 75%%", mc.Volatility))
	}

	switch mc.Regime {
	case models.RegimeBear:
		adjusted *= 0.6
		reasons = append(reasons, "bear regime: scaling size to 60%")
	case models.RegimeSideways:
		adjusted *= 0.8
		reasons = append(reasons, "sideways regime: scaling size to 80%")
	case models.RegimeHighVol:
		adjusted *= 0.6
		reasons = append(reasons, "high-volatility regime: scaling size to 60%")
	}

	switch {
	case mc.RecentDrawdown > 20:
		adjusted *= 0.5
		reasons = append(reasons, fmt.Sprintf("recent drawdown %.1f%% above 20%%: halving size", mc.RecentDrawdown))
	case mc.RecentDrawdown > 10:
		adjusted *= 0.75
		reasons = append(reasons, fmt.Sprintf("recent drawdown %.1f%% above 10%%: reducing size to 75%%", mc.RecentDrawdown))
	}

	return adjusted, reasons
}

// PositionDollars converts an adjusted capital fraction into a bounded dollar
// size: min(portfolio*fraction, portfolio*maxPositionPct). The result records
// whether the cap bound.
func PositionDollars(portfolio decimal.Decimal, fraction, maxPositionPct float64) models.SizingResult {
	recommended := portfolio.Mul(decimal.NewFromFloat(fraction))
	maxSize := portfolio.Mul(decimal.NewFromFloat(maxPositionPct))

	result := models.SizingResult{
		RecommendedSize: recommended,
		MaxSize:         maxSize,
	}

	if recommended.GreaterThan(maxSize) {
		result.ActualSize = maxSize
		result.Capped = true
		result.Reasoning = fmt.Sprintf(
			"recommended %s exceeds the %.0f%% position cap; capped to %s",
			recommended.StringFixed(2), maxPositionPct*100, maxSize.StringFixed(2))
	} else {
		result.ActualSize = recommended
		result.Reasoning = fmt.Sprintf(
			"sizing %s (%.1f%% of portfolio) within the %.0f%% cap",
			recommended.StringFixed(2), fraction*100, maxPositionPct*100)
	}

	return result
}

// JoinReasons flattens rule-level reasoning lines into one rationale string.
func JoinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "no market-condition adjustments triggered"
	}
	return strings.Join(reasons, "; ")
}
