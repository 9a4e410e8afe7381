// Package aggregator folds a cycle's signals into one decision via
// confidence- and success-rate-weighted voting.
package aggregator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// Aggregator computes weighted consensus decisions. It is stateless apart
// from its logger.
type Aggregator struct {
	logger *logrus.Logger
}

// New creates an aggregator.
func New(logger *logrus.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Weighted combines signals using weight = successRatePrior * confidence per
// vote. The winner needs strictly the greatest total weight; any tie at the
// top, including the empty vote, resolves to hold with confidence 0 and an
// explicit rationale -- ties are never broken arbitrarily.
func (a *Aggregator) Weighted(userID string, signals []models.Signal, priors map[string]float64) models.Decision {
	weightOf := func(s models.Signal) float64 {
		prior, ok := priors[s.AgentID]
		if !ok {
			prior = 0.5
		}
		return prior * s.Confidence
	}
	return a.tally(userID, signals, weightOf)
}

// Majority is the confidence-only aggregation for contexts without an agent
// registry. It applies the same tie-break rule as Weighted.
func (a *Aggregator) Majority(userID string, signals []models.Signal) models.Decision {
	return a.tally(userID, signals, func(s models.Signal) float64 { return s.Confidence })
}

func (a *Aggregator) tally(userID string, signals []models.Signal, weightOf func(models.Signal) float64) models.Decision {
	weights := map[models.Action]float64{
		models.ActionBuy:  0,
		models.ActionSell: 0,
		models.ActionHold: 0,
	}
	total := 0.0
	for _, s := range signals {
		w := weightOf(s)
		weights[s.Action] += w
		total += w
	}

	winner, tied := strictWinner(weights)

	decision := models.Decision{
		ID:         uuid.New().String(),
		UserID:     userID,
		AgentCount: len(signals),
		Signals:    signals,
		Timestamp:  time.Now(),
	}

	if tied || total == 0 {
		decision.Action = models.ActionHold
		decision.Rationale = insufficientRationale(signals, weights, tied)
		a.logger.WithFields(logrus.Fields{
			"user_id":      userID,
			"signal_count": len(signals),
			"tied":         tied,
		}).Debug("Aggregation degenerate, holding")
		return decision
	}

	maxWeight := weights[winner]
	decision.Action = winner
	decision.Confidence = weights[winner] / total
	decision.ConsensusStrength = maxWeight / total
	for _, s := range signals {
		if s.Action != winner {
			decision.DissenterCount++
		}
	}
	decision.Rationale = fmt.Sprintf(
		"%s wins with weight %.3f of %.3f (buy %.3f / sell %.3f / hold %.3f), %d of %d agents dissenting",
		winner, weights[winner], total,
		weights[models.ActionBuy], weights[models.ActionSell], weights[models.ActionHold],
		decision.DissenterCount, len(signals))

	return decision
}

// strictWinner returns the action with strictly greatest weight, or tied=true
// when the top weight is shared (which includes the all-zero vote).
func strictWinner(weights map[models.Action]float64) (models.Action, bool) {
	var winner models.Action
	best := -1.0
	tied := false
	for _, action := range []models.Action{models.ActionBuy, models.ActionSell, models.ActionHold} {
		w := weights[action]
		switch {
		case w > best:
			winner, best, tied = action, w, false
		case w == best:
			tied = true
		}
	}
	return winner, tied
}

func insufficientRationale(signals []models.Signal, weights map[models.Action]float64, tied bool) string {
	if len(signals) == 0 {
		return "insufficient signals: no agent produced a vote this cycle"
	}
	if tied && (weights[models.ActionBuy] != 0 || weights[models.ActionSell] != 0 || weights[models.ActionHold] != 0) {
		return fmt.Sprintf(
			"insufficient signals: tied vote (buy %.3f / sell %.3f / hold %.3f), holding",
			weights[models.ActionBuy], weights[models.ActionSell], weights[models.ActionHold])
	}
	return "insufficient signals: all votes carried zero weight"
}

// Conflict reports two strongly opposed agents in the same cycle.
type Conflict struct {
	Detected   bool
	BuyAgents  []string
	SellAgents []string
}

// conflictThreshold is the confidence above which opposed signals count as a
// conflict.
const conflictThreshold = 0.7

// DetectConflict flags a simultaneous high-confidence buy and sell regardless
// of the aggregate outcome. It reports the conflicting agent ids and never
// alters the decision.
func (a *Aggregator) DetectConflict(signals []models.Signal) Conflict {
	var c Conflict
	for _, s := range signals {
		if s.Confidence <= conflictThreshold {
			continue
		}
		switch s.Action {
		case models.ActionBuy:
			c.BuyAgents = append(c.BuyAgents, s.AgentID)
		case models.ActionSell:
			c.SellAgents = append(c.SellAgents, s.AgentID)
		}
	}
	c.Detected = len(c.BuyAgents) > 0 && len(c.SellAgents) > 0
	if c.Detected {
		a.logger.WithFields(logrus.Fields{
			"buy_agents":  strings.Join(c.BuyAgents, ","),
			"sell_agents": strings.Join(c.SellAgents, ","),
		}).Warn("Conflicting high-confidence signals detected")
	}
	return c
}
