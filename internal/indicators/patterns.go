package indicators

import (
	"math"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// Pattern names a recognized candlestick formation on the most recent bars.
type Pattern struct {
	Name    string
	Bias    Band // bullish, bearish or neutral
	Comment string
}

// DetectCandlePatterns inspects the last one or two bars for simple
// candlestick formations. An empty slice means nothing matched.
func DetectCandlePatterns(bars []models.PriceBar) []Pattern {
	var patterns []Pattern
	if len(bars) == 0 {
		return patterns
	}

	cur := bars[len(bars)-1]
	body := math.Abs(cur.Close - cur.Open)
	rng := cur.High - cur.Low
	if rng <= 0 {
		return patterns
	}
	upperWick := cur.High - math.Max(cur.Open, cur.Close)
	lowerWick := math.Min(cur.Open, cur.Close) - cur.Low

	if body/rng < 0.1 {
		patterns = append(patterns, Pattern{
			Name:    "doji",
			Bias:    BandNeutral,
			Comment: "open and close nearly equal, indecision",
		})
	}
	if lowerWick > 2*body && upperWick < body {
		patterns = append(patterns, Pattern{
			Name:    "hammer",
			Bias:    BandBullish,
			Comment: "long lower wick after decline suggests rejection of lows",
		})
	}
	if upperWick > 2*body && lowerWick < body {
		patterns = append(patterns, Pattern{
			Name:    "shooting_star",
			Bias:    BandBearish,
			Comment: "long upper wick suggests rejection of highs",
		})
	}

	if len(bars) >= 2 {
		prev := bars[len(bars)-2]
		prevBody := math.Abs(prev.Close - prev.Open)
		bullishCur := cur.Close > cur.Open
		bearishPrev := prev.Close < prev.Open
		if bullishCur && bearishPrev && body > prevBody &&
			cur.Open <= prev.Close && cur.Close >= prev.Open {
			patterns = append(patterns, Pattern{
				Name:    "bullish_engulfing",
				Bias:    BandBullish,
				Comment: "current body engulfs prior bearish body",
			})
		}
		bearishCur := cur.Close < cur.Open
		bullishPrev := prev.Close > prev.Open
		if bearishCur && bullishPrev && body > prevBody &&
			cur.Open >= prev.Close && cur.Close <= prev.Open {
			patterns = append(patterns, Pattern{
				Name:    "bearish_engulfing",
				Bias:    BandBearish,
				Comment: "current body engulfs prior bullish body",
			})
		}
	}

	return patterns
}
