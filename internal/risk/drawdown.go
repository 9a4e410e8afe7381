package risk

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// DrawdownLevel is one of the three monitor bands.
type DrawdownLevel string

const (
	DrawdownNormal   DrawdownLevel = "normal"
	DrawdownWarning  DrawdownLevel = "warning"
	DrawdownBreached DrawdownLevel = "breached"
)

// warningShare is the fraction of the max allowed drawdown at which the
// warning band starts.
const warningShare = 0.75

// bandEpsilon absorbs float rounding at band boundaries: 0.75*0.20 computes
// to 0.15000000000000002, which would misread a drawdown of exactly 0.15 as
// normal.
const bandEpsilon = 1e-9

// DrawdownStatus is the monitor's read of the current drawdown.
type DrawdownStatus struct {
	Level                 DrawdownLevel
	Drawdown              float64 // current, fraction
	MaxAllowed            float64 // configured ceiling, fraction
	SizeFactor            float64 // 1.0 normal, reduced in warning, 0 breached
	TriggerCircuitBreaker bool
	Message               string
}

// DrawdownMonitor is a three-band state machine over the current drawdown
// value. Transitions are level-triggered: every evaluation classifies the
// current value, so the band can move in either direction cycle to cycle.
type DrawdownMonitor struct {
	maxDrawdown float64
	logger      *logrus.Logger
}

// NewDrawdownMonitor creates a monitor for the configured maximum drawdown
// fraction.
func NewDrawdownMonitor(maxDrawdown float64, logger *logrus.Logger) *DrawdownMonitor {
	if maxDrawdown <= 0 {
		maxDrawdown = 0.25
	}
	return &DrawdownMonitor{maxDrawdown: maxDrawdown, logger: logger}
}

// Evaluate classifies the current drawdown: below 75% of the ceiling is
// normal, 75% up to the ceiling warns and reduces sizing without blocking,
// and at or above the ceiling the circuit breaker trips.
func (m *DrawdownMonitor) Evaluate(current float64) DrawdownStatus {
	status := DrawdownStatus{
		Drawdown:   current,
		MaxAllowed: m.maxDrawdown,
		SizeFactor: 1.0,
	}

	switch {
	case current >= m.maxDrawdown:
		status.Level = DrawdownBreached
		status.SizeFactor = 0
		status.TriggerCircuitBreaker = true
		status.Message = fmt.Sprintf(
			"drawdown %.1f%% reached the %.1f%% ceiling: circuit breaker tripped, halting new orders",
			current*100, m.maxDrawdown*100)
		m.logger.WithFields(logrus.Fields{
			"drawdown": current,
			"max":      m.maxDrawdown,
		}).Error("Drawdown ceiling breached")
	case current >= warningShare*m.maxDrawdown-bandEpsilon:
		status.Level = DrawdownWarning
		status.SizeFactor = 0.5
		status.Message = fmt.Sprintf(
			"drawdown %.1f%% inside the warning band (75%%-100%% of %.1f%%): reducing size",
			current*100, m.maxDrawdown*100)
		m.logger.WithFields(logrus.Fields{
			"drawdown": current,
			"max":      m.maxDrawdown,
		}).Warn("Drawdown in warning band")
	default:
		status.Level = DrawdownNormal
		status.Message = fmt.Sprintf("drawdown %.1f%% within normal range", current*100)
	}

	return status
}

// EmergencyThresholds are the independently fatal conditions: any one trips
// the breaker.
type EmergencyThresholds struct {
	MaxDrawdown   float64
	MaxDailyLoss  float64 // positive currency amount
	MaxErrorCount int
}

// DefaultEmergencyThresholds mirror the hard limits: drawdown over 25%,
// single-day loss over $5,000, rolling error count over 10.
func DefaultEmergencyThresholds() EmergencyThresholds {
	return EmergencyThresholds{
		MaxDrawdown:   0.25,
		MaxDailyLoss:  5000,
		MaxErrorCount: 10,
	}
}

// CheckEmergency tests the fatal conditions against the portfolio state and
// reports the first triggering reason.
func CheckEmergency(t EmergencyThresholds, state models.PortfolioState, drawdown float64) (bool, string) {
	if drawdown > t.MaxDrawdown {
		return true, fmt.Sprintf("drawdown %.1f%% exceeds the %.1f%% emergency limit",
			drawdown*100, t.MaxDrawdown*100)
	}
	dailyLoss, _ := state.DailyPnL.Neg().Float64()
	if dailyLoss > t.MaxDailyLoss {
		return true, fmt.Sprintf("daily loss $%.2f exceeds the $%.2f emergency limit",
			dailyLoss, t.MaxDailyLoss)
	}
	if state.ErrorCount > t.MaxErrorCount {
		return true, fmt.Sprintf("error count %d exceeds the emergency limit of %d",
			state.ErrorCount, t.MaxErrorCount)
	}
	return false, ""
}
