package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quantara-ai/quantara-go/internal/agents"
	"github.com/quantara-ai/quantara-go/internal/aggregator"
	"github.com/quantara-ai/quantara-go/internal/execution"
	"github.com/quantara-ai/quantara-go/internal/indicators"
	"github.com/quantara-ai/quantara-go/internal/models"
	"github.com/quantara-ai/quantara-go/internal/monitoring"
	"github.com/quantara-ai/quantara-go/internal/notify"
	"github.com/quantara-ai/quantara-go/internal/quant"
	"github.com/quantara-ai/quantara-go/internal/risk"
	"github.com/quantara-ai/quantara-go/internal/storage"
	"github.com/quantara-ai/quantara-go/internal/telemetry"
)

// DataProvider supplies the market and account inputs a cycle consumes.
// Implementations may hit exchanges or databases; failures degrade the cycle
// rather than aborting it.
type DataProvider interface {
	MarketSnapshot(ctx context.Context, symbol string) (agents.MarketSnapshot, error)
	TradeStats(ctx context.Context, userID string) (models.TradeStats, error)
}

var ErrInvalidResetToken = errors.New("orchestrator: emergency reset token rejected")

// Config carries the per-cycle tunables resolved from the app config.
type Config struct {
	Symbol       string
	AgentTimeout time.Duration
	LockTTL      time.Duration
	JWTSecret    string
}

// Deps bundles the collaborators a cycle wires together.
type Deps struct {
	Registry   *agents.Registry
	Aggregator *aggregator.Aggregator
	Sizer      *risk.Sizer
	Gate       *risk.Gate
	Drawdown   *risk.DrawdownMonitor
	Emergency  *risk.EmergencyManager
	Monitor    *monitoring.Monitor
	Store      storage.Store
	Executor   execution.Executor
	Data       DataProvider
	Locks      Locker
	Notifier   notify.Notifier
	Logger     *logrus.Logger
}

// Orchestrator drives one decision cycle per scheduler tick. It owns no
// timer: an external scheduler calls RunCycle, and the orchestrator's job is
// to survive whatever that cycle throws at it: a cycle reports failures in
// its summary, never as a panic or an error to the scheduler.
type Orchestrator struct {
	cfg  Config
	deps Deps

	emergencyThresholds risk.EmergencyThresholds
	systemActive        atomic.Bool
}

func New(cfg Config, deps Deps) *Orchestrator {
	o := &Orchestrator{
		cfg:                 cfg,
		deps:                deps,
		emergencyThresholds: risk.DefaultEmergencyThresholds(),
	}
	o.systemActive.Store(true)
	return o
}

// Start resumes cycle processing.
func (o *Orchestrator) Start() {
	o.systemActive.Store(true)
	o.deps.Logger.Info("Pipeline started")
}

// Stop halts new work. A cycle already in flight finishes its in-flight
// agents but starts no further stage.
func (o *Orchestrator) Stop() {
	o.systemActive.Store(false)
	o.deps.Logger.Info("Pipeline stopped")
}

// Active reports whether the pipeline accepts cycles.
func (o *Orchestrator) Active() bool {
	return o.systemActive.Load()
}

// OverrideAgentStatus lets an operator force an agent active or inactive.
func (o *Orchestrator) OverrideAgentStatus(id string, status models.AgentStatus) error {
	if err := o.deps.Registry.SetStatus(id, status); err != nil {
		return err
	}
	o.deps.Logger.WithFields(logrus.Fields{
		"agent_id": id,
		"status":   status,
	}).Warn("Agent status overridden by operator")
	return nil
}

// ResetEmergency clears a tripped circuit breaker. The bearer token must be
// a valid HS256 JWT signed with the operator secret; anything else is
// rejected, never silently ignored.
func (o *Orchestrator) ResetEmergency(token string) error {
	operator, err := o.verifyOperator(token)
	if err != nil {
		return err
	}
	return o.deps.Emergency.Reset(true, operator)
}

func (o *Orchestrator) verifyOperator(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(o.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidResetToken
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidResetToken
	}
	return subject, nil
}

// agentOutcome joins the fan-out: either a signal or a recorded failure, so
// every agent contributes exactly one row to the aggregation input.
type agentOutcome struct {
	agentID string
	signal  models.Signal
	failed  bool
}

// RunCycle executes one full decision cycle for a user. It always returns a
// summary; collaborator failures are logged and counted, and rejections are
// structured outcomes rather than errors.
func (o *Orchestrator) RunCycle(ctx context.Context, userID string, portfolio models.PortfolioState) models.CycleSummary {
	return o.runCycle(ctx, userID, portfolio, nil)
}

// RunCycleWithMarket runs a cycle against caller-supplied market data,
// bypassing the configured provider. The scheduler uses this when it carries
// the market snapshot in the trigger request.
func (o *Orchestrator) RunCycleWithMarket(ctx context.Context, userID string, portfolio models.PortfolioState, market *agents.MarketSnapshot) models.CycleSummary {
	return o.runCycle(ctx, userID, portfolio, market)
}

func (o *Orchestrator) runCycle(ctx context.Context, userID string, portfolio models.PortfolioState, market *agents.MarketSnapshot) models.CycleSummary {
	started := time.Now().UTC()
	summary := models.CycleSummary{
		CycleID:   uuid.New().String(),
		UserID:    userID,
		Action:    models.ActionHold,
		StartedAt: started,
	}

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.cycle", trace.WithAttributes(
		attribute.String("cycle.id", summary.CycleID),
		attribute.String("user.id", userID),
	))
	defer span.End()

	log := o.deps.Logger.WithFields(logrus.Fields{
		"cycle_id": summary.CycleID,
		"user_id":  userID,
	})

	if !o.systemActive.Load() {
		summary.Skipped = true
		summary.SkipReason = "system inactive"
		summary.Duration = time.Since(started)
		return summary
	}

	lockKey := "pipeline:cycle:" + userID
	acquired, err := o.deps.Locks.AcquireLock(ctx, lockKey, o.cfg.LockTTL)
	if err != nil {
		log.WithError(err).Error("Cycle lock acquisition failed")
		summary.Errors++
	} else if !acquired {
		summary.Skipped = true
		summary.SkipReason = "cycle already in flight for user"
		summary.Duration = time.Since(started)
		return summary
	}
	if acquired {
		defer func() {
			if err := o.deps.Locks.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
				log.WithError(err).Warn("Cycle lock release failed")
			}
		}()
	}

	var snap agents.MarketSnapshot
	if market != nil {
		snap = *market
		if snap.Symbol == "" {
			snap.Symbol = o.cfg.Symbol
		}
	} else {
		snap, err = o.deps.Data.MarketSnapshot(ctx, o.cfg.Symbol)
		if err != nil {
			log.WithError(err).Error("Market snapshot unavailable, holding")
			summary.Errors++
			summary.Duration = time.Since(started)
			return summary
		}
	}

	outcomes := o.fanOut(ctx, snap, log)
	summary.AgentsRun = len(outcomes)
	signals := make([]models.Signal, 0, len(outcomes))
	ranIDs := make([]string, 0, len(outcomes))
	for _, oc := range outcomes {
		signals = append(signals, oc.signal)
		ranIDs = append(ranIDs, oc.agentID)
		if oc.failed {
			summary.AgentFailures++
		}
	}
	o.deps.Registry.IncrementDecisions(ranIDs)

	if !o.systemActive.Load() {
		summary.Skipped = true
		summary.SkipReason = "system stopped mid-cycle"
		summary.Duration = time.Since(started)
		return summary
	}

	decision := o.deps.Aggregator.Weighted(userID, signals, o.deps.Registry.Priors())
	summary.Action = decision.Action
	span.SetAttributes(
		attribute.String("decision.action", string(decision.Action)),
		attribute.Float64("decision.confidence", decision.Confidence),
	)

	if conflict := o.deps.Aggregator.DetectConflict(signals); conflict.Detected {
		log.WithFields(logrus.Fields{
			"buy_agents":  conflict.BuyAgents,
			"sell_agents": conflict.SellAgents,
		}).Warn("High-confidence signal conflict detected")
	}

	ddFraction := quant.MaxDrawdown(portfolio.EquityCurve)
	ddStatus := o.deps.Drawdown.Evaluate(ddFraction)
	if ddStatus.TriggerCircuitBreaker {
		o.deps.Emergency.Trip(ddStatus.Message)
	}
	if tripped, reason := risk.CheckEmergency(o.emergencyThresholds, portfolio, ddFraction); tripped {
		o.deps.Emergency.Trip(reason)
	}
	if o.deps.Emergency.Active() {
		state := o.deps.Emergency.State()
		summary.Rejections = append(summary.Rejections, "emergency stop active: "+state.Reason)
		if o.deps.Notifier != nil {
			if err := o.deps.Notifier.SendEmergency(ctx, state); err != nil {
				summary.Errors++
			}
		}
	}

	stats, err := o.deps.Data.TradeStats(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Trade stats unavailable, treating history as empty")
		summary.Errors++
		stats = models.TradeStats{}
	}

	if decision.Action != models.ActionHold && o.deps.Emergency.Active() {
		// Orders are blocked until an authorized reset; the decision is
		// still recorded below for the audit trail.
		summary.Action = models.ActionHold
	} else if decision.Action != models.ActionHold {
		o.tradeStage(ctx, &summary, decision, stats, snap, portfolio, ddStatus, log)
	}

	monSnap := o.deps.Monitor.Compute(portfolio, stats)
	alerts := o.deps.Monitor.Alerts(monSnap, portfolio)
	monSnap.Alerts = alerts
	summary.AlertCount = len(alerts)
	if o.deps.Notifier != nil {
		if err := o.deps.Notifier.SendAlerts(ctx, alerts); err != nil {
			summary.Errors++
		}
	}

	o.persist(ctx, &summary, decision, monSnap, alerts, log)

	summary.Duration = time.Since(started)
	log.WithFields(logrus.Fields{
		"action":         summary.Action,
		"agents_run":     summary.AgentsRun,
		"agent_failures": summary.AgentFailures,
		"executed":       summary.Executed,
		"alerts":         summary.AlertCount,
		"errors":         summary.Errors,
		"duration":       summary.Duration,
	}).Info("Cycle complete")

	return summary
}

// fanOut runs every active agent concurrently under a per-agent timeout. A
// failed or timed-out agent folds to a zero-confidence hold here, at exactly
// one point, so the aggregator only ever sees well-formed signals.
func (o *Orchestrator) fanOut(ctx context.Context, snap agents.MarketSnapshot, log *logrus.Entry) []agentOutcome {
	active := o.deps.Registry.Active()
	outcomes := make([]agentOutcome, len(active))

	var wg sync.WaitGroup
	for i, agent := range active {
		wg.Add(1)
		go func(i int, agent agents.Agent) {
			defer wg.Done()
			agentCtx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
			defer cancel()

			signal, err := func() (s models.Signal, err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("agent panicked: %v", r)
					}
				}()
				return agent.Analyze(agentCtx, snap)
			}()
			if err != nil {
				log.WithError(err).WithField("agent_id", agent.ID()).Warn("Agent failed, folding to hold")
				outcomes[i] = agentOutcome{
					agentID: agent.ID(),
					signal: models.Signal{
						AgentID:    agent.ID(),
						Action:     models.ActionHold,
						Confidence: 0,
						Rationale:  "agent failure: " + err.Error(),
						Timestamp:  time.Now().UTC(),
					},
					failed: true,
				}
				return
			}
			outcomes[i] = agentOutcome{agentID: agent.ID(), signal: signal}
		}(i, agent)
	}
	wg.Wait()

	return outcomes
}

// tradeStage runs the pre-execution risk chain for a non-hold decision:
// gate, then sizing, then the simulated fill. Every rejection lands in the
// summary with its reason.
func (o *Orchestrator) tradeStage(
	ctx context.Context,
	summary *models.CycleSummary,
	decision models.Decision,
	stats models.TradeStats,
	snap agents.MarketSnapshot,
	portfolio models.PortfolioState,
	ddStatus risk.DrawdownStatus,
	log *logrus.Entry,
) {
	mc := deriveConditions(snap, portfolio, ddStatus)
	sizing, rejection := o.deps.Sizer.Size(decision, stats, mc, portfolio)
	if rejection != nil {
		summary.Rejections = append(summary.Rejections, rejection.Reason)
		return
	}
	if ddStatus.SizeFactor < 1 {
		sizing.ActualSize = sizing.ActualSize.Mul(decimal.NewFromFloat(ddStatus.SizeFactor))
		sizing.Reasoning = sizing.Reasoning + " | " + ddStatus.Message
	}

	gate := o.deps.Gate.Check(decision, len(portfolio.Positions), sizing)
	if !gate.Approved {
		summary.Rejections = append(summary.Rejections, gate.Reason)
		return
	}

	order := models.Order{
		UserID:     summary.UserID,
		Symbol:     snap.Symbol,
		Action:     decision.Action,
		Size:       sizing.ActualSize,
		LimitPrice: decimal.NewFromFloat(snap.LastClose()),
		Timestamp:  time.Now().UTC(),
	}
	result, err := o.deps.Executor.Execute(ctx, order)
	if err != nil {
		log.WithError(err).Error("Order execution failed")
		summary.Errors++
		return
	}
	summary.Executed = true
	log.WithFields(logrus.Fields{
		"order_id":   result.OrderID,
		"action":     result.Action,
		"size":       result.Size.String(),
		"fill_price": result.FillPrice.String(),
	}).Info("Order executed")
}

func (o *Orchestrator) persist(
	ctx context.Context,
	summary *models.CycleSummary,
	decision models.Decision,
	monSnap models.MonitoringSnapshot,
	alerts []models.Alert,
	log *logrus.Entry,
) {
	if err := o.deps.Store.AppendDecision(ctx, decision); err != nil {
		log.WithError(err).Error("Failed to persist decision")
		summary.Errors++
	}
	if err := o.deps.Store.AppendSnapshot(ctx, monSnap); err != nil {
		log.WithError(err).Error("Failed to persist monitoring snapshot")
		summary.Errors++
	}
	for _, alert := range alerts {
		if err := o.deps.Store.AppendAlert(ctx, summary.UserID, alert); err != nil {
			log.WithError(err).Error("Failed to persist alert")
			summary.Errors++
		}
	}
}

// deriveConditions classifies the market for position-size damping: regime
// from the 50/200 SMA stack, volatility from the portfolio return series,
// recent drawdown from its equity curve.
func deriveConditions(snap agents.MarketSnapshot, portfolio models.PortfolioState, ddStatus risk.DrawdownStatus) models.MarketConditions {
	closes := indicators.Closes(snap.Bars)
	regime := models.RegimeSideways
	if len(closes) >= 200 {
		last := closes[len(closes)-1]
		sma50 := indicators.SMA(closes, 50)
		sma200 := indicators.SMA(closes, 200)
		switch {
		case last > sma50 && sma50 > sma200:
			regime = models.RegimeBull
		case last < sma50 && sma50 < sma200:
			regime = models.RegimeBear
		}
	}

	return models.MarketConditions{
		Volatility:     quant.AnnualizedVolatility(portfolio.ReturnSeries),
		Regime:         regime,
		RecentDrawdown: ddStatus.Drawdown * 100,
	}
}
