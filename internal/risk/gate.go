package risk

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/models"
)

const (
	gateMaxOpenPositions = 20
	gateMinConfidence    = 0.6
)

// GateResult is the outcome of the pre-execution checks. A rejection is an
// expected outcome with a distinct, human-readable reason.
type GateResult struct {
	Approved bool
	Reason   string
}

// Gate enforces the hard pre-execution limits. Checks are independent,
// short-circuiting and evaluated in a fixed order.
type Gate struct {
	logger *logrus.Logger
}

// NewGate creates a risk gate.
func NewGate(logger *logrus.Logger) *Gate {
	return &Gate{logger: logger}
}

// Check evaluates, in order: open-position count, decision confidence, and
// the presence of a computed size. The first failing check wins.
func (g *Gate) Check(decision models.Decision, openPositions int, sizing *models.SizingResult) GateResult {
	if openPositions >= gateMaxOpenPositions {
		return g.reject(decision, fmt.Sprintf(
			"open position count %d at or above the %d limit", openPositions, gateMaxOpenPositions))
	}
	if decision.Confidence < gateMinConfidence {
		return g.reject(decision, fmt.Sprintf(
			"decision confidence %.2f below the %.2f floor", decision.Confidence, gateMinConfidence))
	}
	if sizing == nil || sizing.ActualSize.LessThanOrEqual(zeroDollars) {
		return g.reject(decision, "no position size was computed for this decision")
	}

	g.logger.WithFields(logrus.Fields{
		"user_id":    decision.UserID,
		"action":     decision.Action,
		"confidence": decision.Confidence,
		"size":       sizing.ActualSize.StringFixed(2),
	}).Info("Risk gate approved trade")
	return GateResult{Approved: true, Reason: "all risk checks passed"}
}

func (g *Gate) reject(decision models.Decision, reason string) GateResult {
	g.logger.WithFields(logrus.Fields{
		"user_id": decision.UserID,
		"action":  decision.Action,
		"reason":  reason,
	}).Info("Risk gate rejected trade")
	return GateResult{Approved: false, Reason: reason}
}
