package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantara-ai/quantara-go/internal/models"
	"github.com/quantara-ai/quantara-go/internal/quant"
)

// arbMinNetSpread is the net cross-venue spread (after fees) required to act.
const arbMinNetSpread = 0.005 // 0.5%

// arbSizeFraction keeps arbitrage entries smaller than directional trades.
var arbSizeFraction = decimal.NewFromFloat(0.02)

// ArbitrageAgent hunts cross-venue spreads net of fees.
type ArbitrageAgent struct {
	id string
}

// NewArbitrageAgent creates the cross-venue arbitrage agent.
func NewArbitrageAgent() *ArbitrageAgent {
	return &ArbitrageAgent{id: "arbitrage"}
}

func (a *ArbitrageAgent) ID() string   { return a.id }
func (a *ArbitrageAgent) Name() string { return "Cross-Venue Arbitrage" }
func (a *ArbitrageAgent) Tier() int    { return TierMarketIntelligence }

// Analyze compares every venue pair, nets out both venues' fees, and buys
// when the best net spread clears 0.5%. The size hint stays deliberately
// below directional strategies' risk budget.
func (a *ArbitrageAgent) Analyze(_ context.Context, snap MarketSnapshot) (models.Signal, error) {
	if len(snap.Venues) < 2 {
		return holdSignal(a.id, fmt.Sprintf(
			"need quotes from at least 2 venues, have %d", len(snap.Venues))), nil
	}

	var (
		bestSpread float64
		bestBuy    VenueQuote
		bestSell   VenueQuote
	)
	for _, buy := range snap.Venues {
		if buy.Price.IsZero() {
			continue
		}
		for _, sell := range snap.Venues {
			if buy.Venue == sell.Venue {
				continue
			}
			gross, _ := sell.Price.Sub(buy.Price).Div(buy.Price).Float64()
			net := gross - buy.Fee - sell.Fee
			if net > bestSpread {
				bestSpread = net
				bestBuy = buy
				bestSell = sell
			}
		}
	}

	now := time.Now()
	if bestSpread > arbMinNetSpread {
		sizeHint := arbSizeFraction
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionBuy,
			Confidence: 0.8,
			SizeHint:   &sizeHint,
			Rationale: fmt.Sprintf(
				"net spread %.2f%% buying on %s at %s, selling on %s at %s (fees included)",
				bestSpread*100, bestBuy.Venue, bestBuy.Price.StringFixed(2),
				bestSell.Venue, bestSell.Price.StringFixed(2)),
			Timestamp: now,
		}, nil
	}

	return models.Signal{
		AgentID:    a.id,
		Action:     models.ActionHold,
		Confidence: 0.2,
		Rationale: fmt.Sprintf(
			"best net spread %.2f%% below the %.1f%% threshold", bestSpread*100, arbMinNetSpread*100),
		Timestamp: now,
	}, nil
}

const (
	pairsMinHistory = 30
	pairsEntryZ     = 2.0
)

// PairsTradingAgent trades the z-score of the price spread between two
// correlated instruments.
type PairsTradingAgent struct {
	id string
}

// NewPairsTradingAgent creates the pairs-trading variant of the arbitrage
// strategy.
func NewPairsTradingAgent() *PairsTradingAgent {
	return &PairsTradingAgent{id: "pairs_trading"}
}

func (a *PairsTradingAgent) ID() string   { return a.id }
func (a *PairsTradingAgent) Name() string { return "Pairs Trading (spread z-score)" }
func (a *PairsTradingAgent) Tier() int    { return TierStrategyEngine }

// Analyze signals entry when the pair spread stretches beyond two standard
// deviations of its history: short the rich leg (sell) above +2σ, buy below
// -2σ.
func (a *PairsTradingAgent) Analyze(_ context.Context, snap MarketSnapshot) (models.Signal, error) {
	pair := snap.Pair
	if pair == nil {
		return holdSignal(a.id, "no pair series supplied"), nil
	}
	n := len(pair.PricesA)
	if n != len(pair.PricesB) || n < pairsMinHistory {
		return holdSignal(a.id, fmt.Sprintf(
			"pair series misaligned or short: %d vs %d points, need %d aligned",
			len(pair.PricesA), len(pair.PricesB), pairsMinHistory)), nil
	}

	spread := make([]float64, n)
	for i := 0; i < n; i++ {
		spread[i] = pair.PricesA[i] - pair.PricesB[i]
	}
	mean := quant.Mean(spread)
	std := quant.StdDev(spread)
	if std == 0 {
		return holdSignal(a.id, "pair spread has zero variance"), nil
	}
	z := (spread[n-1] - mean) / std

	now := time.Now()
	sizeHint := arbSizeFraction
	switch {
	case z > pairsEntryZ:
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionSell,
			Confidence: 0.75,
			SizeHint:   &sizeHint,
			Rationale: fmt.Sprintf(
				"%s-%s spread z-score %.2f above +%.0fσ: selling the rich leg",
				pair.SymbolA, pair.SymbolB, z, pairsEntryZ),
			Timestamp: now,
		}, nil
	case z < -pairsEntryZ:
		return models.Signal{
			AgentID:    a.id,
			Action:     models.ActionBuy,
			Confidence: 0.75,
			SizeHint:   &sizeHint,
			Rationale: fmt.Sprintf(
				"%s-%s spread z-score %.2f below -%.0fσ: buying the cheap leg",
				pair.SymbolA, pair.SymbolB, z, pairsEntryZ),
			Timestamp: now,
		}, nil
	}

	return models.Signal{
		AgentID:    a.id,
		Action:     models.ActionHold,
		Confidence: 0.25,
		Rationale:  fmt.Sprintf("%s-%s spread z-score %.2f inside entry bands", pair.SymbolA, pair.SymbolB, z),
		Timestamp:  now,
	}, nil
}
