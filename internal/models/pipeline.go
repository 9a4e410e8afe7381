package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the directional opinion a signal or decision carries.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// AgentStatus tracks whether an agent participates in cycles.
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
	AgentStatusError    AgentStatus = "error"
)

// PriceBar is one OHLCV observation from the market data feed. Bars are
// produced upstream and consumed read-only.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Signal is a single agent's opinion for the current cycle. Signals are
// created fresh each cycle and never mutated.
type Signal struct {
	AgentID     string           `json:"agent_id"`
	Action      Action           `json:"action"`
	Confidence  float64          `json:"confidence"` // [0,1]
	TargetPrice *decimal.Decimal `json:"target_price,omitempty"`
	StopLoss    *decimal.Decimal `json:"stop_loss,omitempty"`
	SizeHint    *decimal.Decimal `json:"size_hint,omitempty"`
	Rationale   string           `json:"rationale"`
	Timestamp   time.Time        `json:"timestamp"`
}

// AgentInfo is one registry entry. SuccessRate is a prior used as a voting
// weight; this subsystem never updates it online.
type AgentInfo struct {
	ID            string      `json:"id" db:"id"`
	Name          string      `json:"name" db:"name"`
	Tier          int         `json:"tier" db:"tier"` // 0-6
	Status        AgentStatus `json:"status" db:"status"`
	SuccessRate   float64     `json:"success_rate" db:"success_rate"` // [0,1]
	DecisionCount int64       `json:"decision_count" db:"decision_count"`
}

// Decision is the aggregated outcome of one cycle: exactly one per cycle per
// user, immutable, persisted for audit.
type Decision struct {
	ID                string    `json:"id" db:"id"`
	UserID            string    `json:"user_id" db:"user_id"`
	Action            Action    `json:"action" db:"action"`
	Confidence        float64   `json:"confidence" db:"confidence"`
	ConsensusStrength float64   `json:"consensus_strength" db:"consensus_strength"`
	AgentCount        int       `json:"agent_count" db:"agent_count"`
	DissenterCount    int       `json:"dissenter_count" db:"dissenter_count"`
	Rationale         string    `json:"rationale" db:"rationale"`
	Signals           []Signal  `json:"signals"`
	Timestamp         time.Time `json:"timestamp" db:"created_at"`
}

// SizingResult is the dollar sizing derived from a decision. ActualSize is
// always min(RecommendedSize, MaxSize).
type SizingResult struct {
	RecommendedSize decimal.Decimal `json:"recommended_size"`
	MaxSize         decimal.Decimal `json:"max_size"`
	ActualSize      decimal.Decimal `json:"actual_size"`
	Capped          bool            `json:"capped"`
	Reasoning       string          `json:"reasoning"`
}

// RiskLimits are the hard limits the risk gate enforces. Read-only during a
// cycle.
type RiskLimits struct {
	MaxPositionPct float64         `json:"max_position_pct"` // fraction of portfolio, e.g. 0.10
	MaxDrawdownPct float64         `json:"max_drawdown_pct"` // fraction, e.g. 0.25
	MaxDailyLoss   decimal.Decimal `json:"max_daily_loss"`
	StopLossPct    float64         `json:"stop_loss_pct"`
	MaxPositions   int             `json:"max_positions"`
	MinConfidence  float64         `json:"min_confidence"`
}

// CapitalTier is one band of a portfolio-value lookup table. MaxValue zero
// means unbounded, which makes the final tier a catch-all.
type CapitalTier struct {
	Tier           int             `json:"tier"`
	MinValue       decimal.Decimal `json:"min_value"`
	MaxValue       decimal.Decimal `json:"max_value"`
	MaxPositions   int             `json:"max_positions"`
	MaxPositionPct float64         `json:"max_position_pct"`
	RiskLevel      string          `json:"risk_level"`
}

// AlertSeverity orders alerts for presentation: critical first, low last.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
	SeverityMedium   AlertSeverity = "medium"
	SeverityLow      AlertSeverity = "low"
)

// Alert is a threshold-triggered monitoring event. Dedup and routing belong
// to the downstream notification layer.
type Alert struct {
	ID             string        `json:"id" db:"id"`
	Type           string        `json:"type" db:"type"`
	Severity       AlertSeverity `json:"severity" db:"severity"`
	Message        string        `json:"message" db:"message"`
	RequiredAction string        `json:"required_action,omitempty" db:"required_action"`
	Timestamp      time.Time     `json:"timestamp" db:"created_at"`
}

// EmergencyState records a tripped circuit breaker. While Active, no new
// orders may be placed; only an authorized reset clears it.
type EmergencyState struct {
	Active      bool      `json:"active"`
	Reason      string    `json:"reason"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// MarketRegime classifies the broad market for position-size scaling.
type MarketRegime string

const (
	RegimeBull     MarketRegime = "bull"
	RegimeBear     MarketRegime = "bear"
	RegimeSideways MarketRegime = "sideways"
	RegimeHighVol  MarketRegime = "high_volatility"
)

// MarketConditions is the cycle's view of the broad market used to damp
// position sizes.
type MarketConditions struct {
	Volatility     float64      `json:"volatility"` // annualized, percent
	Regime         MarketRegime `json:"regime"`
	RecentDrawdown float64      `json:"recent_drawdown"` // percent
}

// TradeStats summarizes a trade history for Kelly sizing. AvgLoss is signed
// negative.
type TradeStats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
}

// WinRate returns the fraction of winning trades, 0 for an empty history.
func (s TradeStats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalTrades)
}

// Position is one open holding in the user's portfolio.
type Position struct {
	Symbol       string           `json:"symbol"`
	Quantity     decimal.Decimal  `json:"quantity"`
	EntryPrice   decimal.Decimal  `json:"entry_price"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	TargetPrice  *decimal.Decimal `json:"target_price,omitempty"`
	StopLoss     *decimal.Decimal `json:"stop_loss,omitempty"`
}

// Value returns the current market value of the position.
func (p Position) Value() decimal.Decimal {
	return p.Quantity.Mul(p.CurrentPrice)
}

// PortfolioState is the per-user snapshot the risk and monitoring components
// evaluate each cycle.
type PortfolioState struct {
	UserID       string          `json:"user_id"`
	Value        decimal.Decimal `json:"value"`
	Positions    []Position      `json:"positions"`
	DailyPnL     decimal.Decimal `json:"daily_pnl"`
	ReturnSeries []float64       `json:"return_series"`
	EquityCurve  []float64       `json:"equity_curve"`
	ErrorCount   int             `json:"error_count"`
}

// Exposure returns total position value as a fraction of portfolio value.
func (ps PortfolioState) Exposure() float64 {
	if ps.Value.IsZero() {
		return 0
	}
	total := decimal.Zero
	for _, p := range ps.Positions {
		total = total.Add(p.Value())
	}
	f, _ := total.Div(ps.Value).Float64()
	return f
}

// MonitoringSnapshot is the per-cycle performance and risk picture.
type MonitoringSnapshot struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	TotalReturn   float64   `json:"total_return"`
	DailyReturn   float64   `json:"daily_return"`
	SharpeRatio   float64   `json:"sharpe_ratio"`
	MaxDrawdown   float64   `json:"max_drawdown"`
	WinRate       float64   `json:"win_rate"`
	AvgWin        float64   `json:"avg_win"`
	AvgLoss       float64   `json:"avg_loss"`
	Volatility    float64   `json:"volatility"`
	VaR95         float64   `json:"var_95"`
	ExpectedShort float64   `json:"expected_shortfall"`
	Concentration float64   `json:"concentration"` // Herfindahl index over position weights
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	Alerts        []Alert   `json:"alerts"`
	Timestamp     time.Time `json:"timestamp" db:"created_at"`
}

// CycleSummary is what one orchestrator cycle reports back to the scheduler.
// A cycle never returns an error to the scheduler; failures show up here.
type CycleSummary struct {
	CycleID       string        `json:"cycle_id"`
	UserID        string        `json:"user_id"`
	Skipped       bool          `json:"skipped"` // system off or cycle already in flight
	SkipReason    string        `json:"skip_reason,omitempty"`
	AgentsRun     int           `json:"agents_run"`
	AgentFailures int           `json:"agent_failures"`
	Action        Action        `json:"action"`
	Executed      bool          `json:"executed"`
	Rejections    []string      `json:"rejections,omitempty"`
	AlertCount    int           `json:"alert_count"`
	Errors        int           `json:"errors"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}

// ExecutionResult is the shape the execution collaborator returns. Only the
// audit-trail fields matter to this subsystem.
type ExecutionResult struct {
	OrderID    string          `json:"order_id"`
	Symbol     string          `json:"symbol"`
	Action     Action          `json:"action"`
	Size       decimal.Decimal `json:"size"`
	FillPrice  decimal.Decimal `json:"fill_price"`
	Slippage   float64         `json:"slippage"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Order is a sized trade handed to the execution collaborator.
type Order struct {
	UserID     string          `json:"user_id"`
	Symbol     string          `json:"symbol"`
	Action     Action          `json:"action"`
	Size       decimal.Decimal `json:"size"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	Timestamp  time.Time       `json:"timestamp"`
}

// DecisionFilter narrows ListDecisions queries.
type DecisionFilter struct {
	Action Action    `json:"action,omitempty"`
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}
