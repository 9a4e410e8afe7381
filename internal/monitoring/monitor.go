// Package monitoring computes per-cycle performance and risk metrics and the
// threshold-triggered alerts derived from them.
package monitoring

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/models"
	"github.com/quantara-ai/quantara-go/internal/quant"
)

// Monitor computes monitoring snapshots. Each computation is stateless given
// the portfolio state and trade history, so one Monitor serves concurrent
// user cycles; alert dedup belongs downstream.
type Monitor struct {
	riskFreeRate float64
	logger       *logrus.Logger
}

// NewMonitor creates a monitor with an annual risk-free rate for the Sharpe
// calculation.
func NewMonitor(riskFreeRate float64, logger *logrus.Logger) *Monitor {
	return &Monitor{riskFreeRate: riskFreeRate, logger: logger}
}

// Compute builds the cycle's monitoring snapshot from the portfolio state
// and that user's trade history: returns, Sharpe, drawdown, volatility, tail
// risk and concentration, plus host resource usage.
func (m *Monitor) Compute(state models.PortfolioState, stats models.TradeStats) models.MonitoringSnapshot {
	snap := models.MonitoringSnapshot{
		ID:        uuid.New().String(),
		UserID:    state.UserID,
		Timestamp: time.Now(),
	}

	if n := len(state.EquityCurve); n > 1 && state.EquityCurve[0] != 0 {
		snap.TotalReturn = (state.EquityCurve[n-1] - state.EquityCurve[0]) / state.EquityCurve[0]
	}
	if n := len(state.ReturnSeries); n > 0 {
		snap.DailyReturn = state.ReturnSeries[n-1]
	}
	snap.SharpeRatio = quant.SharpeRatio(state.ReturnSeries, m.riskFreeRate)
	snap.MaxDrawdown = quant.MaxDrawdown(state.EquityCurve)
	snap.Volatility = quant.AnnualizedVolatility(state.ReturnSeries)
	snap.VaR95, snap.ExpectedShort = tailRisk(state.ReturnSeries, 0.95)
	snap.Concentration = herfindahl(state.Positions)

	snap.WinRate = stats.WinRate()
	snap.AvgWin = stats.AvgWin
	snap.AvgLoss = stats.AvgLoss

	snap.CPUPercent, snap.MemoryPercent = hostStats()

	m.logger.WithFields(logrus.Fields{
		"user_id":      state.UserID,
		"sharpe":       snap.SharpeRatio,
		"max_drawdown": snap.MaxDrawdown,
		"volatility":   snap.Volatility,
		"var_95":       snap.VaR95,
	}).Debug("Monitoring snapshot computed")

	return snap
}

// tailEpsilon absorbs float rounding when sizing the loss tail.
const tailEpsilon = 1e-9

// tailRisk computes historical Value-at-Risk at the given confidence and the
// Expected Shortfall as the mean of the worst (1-confidence) share of
// returns. Both are reported as positive loss magnitudes.
func tailRisk(returns []float64, confidence float64) (varValue, es float64) {
	if len(returns) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// 1-confidence is inexact in binary (1-0.95 = 0.0500..044); without the
	// epsilon, 20 observations would ceil to a 2-element tail instead of 1.
	tailCount := int(math.Ceil(float64(len(sorted))*(1-confidence) - tailEpsilon))
	if tailCount < 1 {
		tailCount = 1
	}

	varValue = -sorted[tailCount-1]
	sum := 0.0
	for _, r := range sorted[:tailCount] {
		sum += r
	}
	es = -sum / float64(tailCount)

	if varValue < 0 {
		varValue = 0
	}
	if es < 0 {
		es = 0
	}
	return varValue, es
}

// herfindahl computes the concentration index over position weights: 0 for
// no positions, 1 for a single position holding everything.
func herfindahl(positions []models.Position) float64 {
	if len(positions) == 0 {
		return 0
	}
	total := 0.0
	values := make([]float64, len(positions))
	for i, p := range positions {
		v, _ := p.Value().Float64()
		values[i] = v
		total += v
	}
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, v := range values {
		w := v / total
		h += w * w
	}
	return h
}

// hostStats samples process-host CPU and memory usage; failures degrade to
// zeros rather than disturbing the cycle.
func hostStats() (cpuPct, memPct float64) {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPct = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	}
	return cpuPct, memPct
}
