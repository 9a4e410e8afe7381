package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/quantara-ai/quantara-go/internal/models"
)

const (
	valueAttractivePE = 15.0
	valueRichPE       = 30.0
	valueAttractivePB = 1.5
	valueRichPB       = 4.0
)

// ValueAgent thresholds P/E and P/B ratios: both attractive is a buy, both
// rich is a sell, mixed reads hold.
type ValueAgent struct {
	id string
}

// NewValueAgent creates the fundamental value agent.
func NewValueAgent() *ValueAgent {
	return &ValueAgent{id: "value"}
}

func (a *ValueAgent) ID() string   { return a.id }
func (a *ValueAgent) Name() string { return "Value (P/E and P/B)" }
func (a *ValueAgent) Tier() int    { return TierStrategyEngine }

func (a *ValueAgent) Analyze(_ context.Context, snap MarketSnapshot) (models.Signal, error) {
	f := snap.Fundamentals
	if f == nil || f.PERatio <= 0 || f.PBRatio <= 0 {
		return holdSignal(a.id, "no usable fundamentals (P/E or P/B missing or non-positive)"), nil
	}

	cheapPE := f.PERatio < valueAttractivePE
	richPE := f.PERatio > valueRichPE
	cheapPB := f.PBRatio < valueAttractivePB
	richPB := f.PBRatio > valueRichPB

	now := time.Now()
	switch {
	case cheapPE && cheapPB:
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionBuy,
			Confidence: 0.7,
			Rationale: fmt.Sprintf(
				"P/E %.1f below %.0f and P/B %.1f below %.1f: attractively valued",
				f.PERatio, valueAttractivePE, f.PBRatio, valueAttractivePB),
			Timestamp: now,
		}, nil
	case richPE && richPB:
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionSell,
			Confidence: 0.7,
			Rationale: fmt.Sprintf(
				"P/E %.1f above %.0f and P/B %.1f above %.1f: richly valued",
				f.PERatio, valueRichPE, f.PBRatio, valueRichPB),
			Timestamp: now,
		}, nil
	}

	return models.Signal{
		AgentID:    a.id,
		Action:     models.ActionHold,
		Confidence: 0.4,
		Rationale: fmt.Sprintf(
			"mixed valuation: P/E %.1f, P/B %.1f give no combined edge", f.PERatio, f.PBRatio),
		Timestamp: now,
	}, nil
}
