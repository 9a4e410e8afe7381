package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/quantara-ai/quantara-go/internal/indicators"
	"github.com/quantara-ai/quantara-go/internal/models"
)

const (
	momentumFastPeriod = 50
	momentumSlowPeriod = 200

	momentumMACDFast   = 12
	momentumMACDSlow   = 26
	momentumMACDSignal = 9
)

// MomentumAgent trades golden and death crosses of the 50- and 200-period
// simple moving averages.
type MomentumAgent struct {
	id string
}

// NewMomentumAgent creates the momentum strategy agent.
func NewMomentumAgent() *MomentumAgent {
	return &MomentumAgent{id: "momentum"}
}

func (a *MomentumAgent) ID() string   { return a.id }
func (a *MomentumAgent) Name() string { return "Momentum (50/200 SMA cross)" }
func (a *MomentumAgent) Tier() int    { return TierMarketIntelligence }

// Analyze emits a high-confidence buy on a golden cross, a high-confidence
// sell on a death cross, and otherwise a hold whose confidence scales with
// the trend direction.
func (a *MomentumAgent) Analyze(_ context.Context, snap MarketSnapshot) (models.Signal, error) {
	closes := indicators.Closes(snap.Bars)
	// A previous slow-SMA value needs one bar beyond the slow lookback.
	if len(closes) < momentumSlowPeriod+1 {
		return holdSignal(a.id, fmt.Sprintf(
			"insufficient history for 50/200 SMA cross: have %d bars, need %d",
			len(closes), momentumSlowPeriod+1)), nil
	}

	fastSMA := trend.NewSmaWithPeriod[float64](momentumFastPeriod)
	slowSMA := trend.NewSmaWithPeriod[float64](momentumSlowPeriod)
	fast := helper.ChanToSlice(fastSMA.Compute(helper.SliceToChan(closes)))
	slow := helper.ChanToSlice(slowSMA.Compute(helper.SliceToChan(closes)))
	if len(fast) < 2 || len(slow) < 2 {
		return holdSignal(a.id, "SMA series too short after warmup"), nil
	}

	curFast, prevFast := fast[len(fast)-1], fast[len(fast)-2]
	curSlow, prevSlow := slow[len(slow)-1], slow[len(slow)-2]
	macd := indicators.MACD(closes, momentumMACDFast, momentumMACDSlow, momentumMACDSignal)

	now := time.Now()
	switch {
	case curFast > curSlow && prevFast <= prevSlow:
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionBuy,
			Confidence: 0.85,
			Rationale: fmt.Sprintf(
				"golden cross: 50 SMA %.2f crossed above 200 SMA %.2f, MACD histogram %.2f (%s)",
				curFast, curSlow, macd.Histogram, macd.Band),
			Timestamp: now,
		}, nil
	case curFast < curSlow && prevFast >= prevSlow:
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionSell,
			Confidence: 0.85,
			Rationale: fmt.Sprintf(
				"death cross: 50 SMA %.2f crossed below 200 SMA %.2f, MACD histogram %.2f (%s)",
				curFast, curSlow, macd.Histogram, macd.Band),
			Timestamp: now,
		}, nil
	}

	// No cross: hold, with confidence scaled by how far the fast average sits
	// from the slow one, nudged up when the MACD agrees with the trend.
	spread := 0.0
	if curSlow != 0 {
		spread = (curFast - curSlow) / curSlow
	}
	confidence := spread * 10
	direction := "uptrend"
	if confidence < 0 {
		confidence = -confidence
		direction = "downtrend"
	}
	if (direction == "uptrend" && macd.Band == indicators.BandBullish) ||
		(direction == "downtrend" && macd.Band == indicators.BandBearish) {
		confidence += 0.1
	}
	if confidence > 0.5 {
		confidence = 0.5
	}

	return models.Signal{
		AgentID:    a.id,
		Action:     models.ActionHold,
		Confidence: confidence,
		Rationale: fmt.Sprintf(
			"no cross; %s with 50 SMA %.2f vs 200 SMA %.2f (%.2f%% apart), MACD %s",
			direction, curFast, curSlow, spread*100, macd.Band),
		Timestamp: now,
	}, nil
}
