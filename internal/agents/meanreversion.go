package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/quantara-ai/quantara-go/internal/indicators"
	"github.com/quantara-ai/quantara-go/internal/models"
)

const (
	reversionRSIPeriod = 14
	reversionBBPeriod  = 20
	reversionBBMult    = 2.0

	reversionStochK = 14
	reversionStochD = 3
)

// MeanReversionAgent fades extremes by combining RSI with Bollinger %B.
type MeanReversionAgent struct {
	id string
}

// NewMeanReversionAgent creates the mean-reversion strategy agent.
func NewMeanReversionAgent() *MeanReversionAgent {
	return &MeanReversionAgent{id: "mean_reversion"}
}

func (a *MeanReversionAgent) ID() string   { return a.id }
func (a *MeanReversionAgent) Name() string { return "Mean Reversion (RSI + Bollinger %B)" }
func (a *MeanReversionAgent) Tier() int    { return TierMarketIntelligence }

// Analyze signals a high-confidence buy when RSI is oversold while price sits
// below the lower Bollinger band, symmetric for sells; the moderate 35/65 RSI
// thresholds produce weaker directional signals.
func (a *MeanReversionAgent) Analyze(_ context.Context, snap MarketSnapshot) (models.Signal, error) {
	closes := indicators.Closes(snap.Bars)
	if len(closes) < reversionBBPeriod+1 {
		return holdSignal(a.id, fmt.Sprintf(
			"insufficient history for mean reversion: have %d bars, need %d",
			len(closes), reversionBBPeriod+1)), nil
	}

	rsi, _ := indicators.RSI(closes, reversionRSIPeriod)
	bb := indicators.BollingerBands(closes, reversionBBPeriod, reversionBBMult)
	stoch := indicators.Stochastic(snap.Bars, reversionStochK, reversionStochD)

	now := time.Now()
	switch {
	case rsi < 30 && bb.PercentB < 0:
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionBuy,
			Confidence: 0.85,
			Rationale: fmt.Sprintf(
				"RSI %.1f oversold and price below lower band (%%B %.2f): strong reversion buy",
				rsi, bb.PercentB),
			Timestamp: now,
		}, nil
	case rsi > 70 && bb.PercentB > 1:
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionSell,
			Confidence: 0.85,
			Rationale: fmt.Sprintf(
				"RSI %.1f overbought and price above upper band (%%B %.2f): strong reversion sell",
				rsi, bb.PercentB),
			Timestamp: now,
		}, nil
	case rsi < 35:
		confidence := 0.55
		confirm := ""
		if stoch.Band == indicators.BandOversold {
			confidence = 0.65
			confirm = fmt.Sprintf(", stochastic %%K %.1f confirms", stoch.K)
		}
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionBuy,
			Confidence: confidence,
			Rationale:  fmt.Sprintf("RSI %.1f near oversold (%%B %.2f)%s: moderate reversion buy", rsi, bb.PercentB, confirm),
			Timestamp:  now,
		}, nil
	case rsi > 65:
		confidence := 0.55
		confirm := ""
		if stoch.Band == indicators.BandOverbought {
			confidence = 0.65
			confirm = fmt.Sprintf(", stochastic %%K %.1f confirms", stoch.K)
		}
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionSell,
			Confidence: confidence,
			Rationale:  fmt.Sprintf("RSI %.1f near overbought (%%B %.2f)%s: moderate reversion sell", rsi, bb.PercentB, confirm),
			Timestamp:  now,
		}, nil
	}

	return models.Signal{
		AgentID:    a.id,
		Action:     models.ActionHold,
		Confidence: 0.3,
		Rationale: fmt.Sprintf("RSI %.1f, %%B %.2f and stochastic %%K %.1f inside normal ranges",
			rsi, bb.PercentB, stoch.K),
		Timestamp: now,
	}, nil
}
