package monitoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/quantara-ai/quantara-go/internal/models"
)

const (
	alertDrawdownPct   = 0.15
	alertExposurePct   = 0.85
	alertVolatilityPct = 40.0
)

// severityRank orders alerts critical first for presentation.
var severityRank = map[models.AlertSeverity]int{
	models.SeverityCritical: 0,
	models.SeverityHigh:     1,
	models.SeverityMedium:   2,
	models.SeverityLow:      3,
}

// Alerts runs the independent threshold checks against the snapshot and
// portfolio and returns them sorted by severity. Checks are stateless; no
// suppression or dedup happens here.
func (m *Monitor) Alerts(snap models.MonitoringSnapshot, state models.PortfolioState) []models.Alert {
	var alerts []models.Alert
	now := time.Now()

	newAlert := func(alertType string, severity models.AlertSeverity, message, action string) models.Alert {
		return models.Alert{
			ID:             uuid.New().String(),
			Type:           alertType,
			Severity:       severity,
			Message:        message,
			RequiredAction: action,
			Timestamp:      now,
		}
	}

	for _, p := range state.Positions {
		if p.TargetPrice != nil && p.CurrentPrice.GreaterThanOrEqual(*p.TargetPrice) {
			alerts = append(alerts, newAlert("price_target", models.SeverityMedium,
				fmt.Sprintf("%s reached price target %s (current %s)",
					p.Symbol, p.TargetPrice.StringFixed(2), p.CurrentPrice.StringFixed(2)),
				"consider taking profit"))
		}
		if p.StopLoss != nil && p.CurrentPrice.LessThanOrEqual(*p.StopLoss) {
			alerts = append(alerts, newAlert("stop_loss", models.SeverityHigh,
				fmt.Sprintf("%s breached stop-loss %s (current %s)",
					p.Symbol, p.StopLoss.StringFixed(2), p.CurrentPrice.StringFixed(2)),
				"close the position"))
		}
	}

	if snap.MaxDrawdown > alertDrawdownPct {
		alerts = append(alerts, newAlert("drawdown", models.SeverityCritical,
			fmt.Sprintf("drawdown %.1f%% above the %.0f%% alert threshold",
				snap.MaxDrawdown*100, alertDrawdownPct*100),
			"reduce exposure"))
	}

	if exposure := state.Exposure(); exposure > alertExposurePct {
		alerts = append(alerts, newAlert("exposure", models.SeverityHigh,
			fmt.Sprintf("total exposure %.1f%% above the %.0f%% alert threshold",
				exposure*100, alertExposurePct*100),
			"stop opening positions"))
	}

	if snap.Volatility > alertVolatilityPct {
		alerts = append(alerts, newAlert("volatility", models.SeverityMedium,
			fmt.Sprintf("portfolio volatility %.1f%% above the %.0f%% alert threshold",
				snap.Volatility, alertVolatilityPct), ""))
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank[alerts[i].Severity] < severityRank[alerts[j].Severity]
	})
	return alerts
}
