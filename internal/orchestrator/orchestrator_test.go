package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantara-ai/quantara-go/internal/agents"
	"github.com/quantara-ai/quantara-go/internal/aggregator"
	"github.com/quantara-ai/quantara-go/internal/execution"
	"github.com/quantara-ai/quantara-go/internal/models"
	"github.com/quantara-ai/quantara-go/internal/monitoring"
	"github.com/quantara-ai/quantara-go/internal/risk"
	"github.com/quantara-ai/quantara-go/internal/storage"
)

// stubAgent returns a fixed signal, or an error when failErr is set.
type stubAgent struct {
	id      string
	action  models.Action
	conf    float64
	failErr error
}

func (a *stubAgent) ID() string   { return a.id }
func (a *stubAgent) Name() string { return a.id }
func (a *stubAgent) Tier() int    { return 1 }

func (a *stubAgent) Analyze(_ context.Context, _ agents.MarketSnapshot) (models.Signal, error) {
	if a.failErr != nil {
		return models.Signal{}, a.failErr
	}
	return models.Signal{
		AgentID:    a.id,
		Action:     a.action,
		Confidence: a.conf,
		Rationale:  "stub",
		Timestamp:  time.Now(),
	}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testBars(n int, price float64) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	now := time.Now()
	for i := range bars {
		bars[i] = models.PriceBar{
			Timestamp: now.Add(time.Duration(i-n) * time.Minute),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

// newTestOrchestrator wires an orchestrator entirely from in-process
// collaborators. Callers mutate the returned deps' store/registry as needed.
func newTestOrchestrator(t *testing.T, registered ...agents.Agent) (*Orchestrator, *storage.MemoryStore, *risk.EmergencyManager) {
	t.Helper()
	logger := quietLogger()

	registry := agents.NewRegistry()
	for _, a := range registered {
		registry.Register(a, 0.9)
	}

	store := storage.NewMemoryStore()
	emergency := risk.NewEmergencyManager(logger)

	deps := Deps{
		Registry:   registry,
		Aggregator: aggregator.New(logger),
		Sizer:      risk.NewSizer(logger),
		Gate:       risk.NewGate(logger),
		Drawdown:   risk.NewDrawdownMonitor(0.25, logger),
		Emergency:  emergency,
		Monitor:    monitoring.NewMonitor(0.05, logger),
		Store:      store,
		Executor:   execution.NewMockExecutor(logger),
		Data: &StaticDataProvider{
			Snap: agents.MarketSnapshot{Symbol: "BTC/USDT", Bars: testBars(10, 50000)},
			Stats: models.TradeStats{
				TotalTrades: 120,
				Wins:        66,
				Losses:      54,
				AvgWin:      140,
				AvgLoss:     -95,
			},
		},
		Locks:  NewMemoryLocker(),
		Logger: logger,
	}

	cfg := Config{
		Symbol:       "BTC/USDT",
		AgentTimeout: time.Second,
		LockTTL:      time.Second,
		JWTSecret:    "test-secret",
	}
	return New(cfg, deps), store, emergency
}

func healthyPortfolio() models.PortfolioState {
	return models.PortfolioState{
		UserID:      "user-1",
		Value:       decimal.NewFromInt(100000),
		EquityCurve: []float64{98000, 99000, 100000},
	}
}

func TestRunCycleSkippedWhenStopped(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &stubAgent{id: "momentum", action: models.ActionHold, conf: 0.4})
	orch.Stop()

	summary := orch.RunCycle(context.Background(), "user-1", healthyPortfolio())

	assert.True(t, summary.Skipped)
	assert.Equal(t, "system inactive", summary.SkipReason)
	assert.Zero(t, summary.AgentsRun)
	assert.False(t, orch.Active())
}

func TestRunCycleSkippedWhenLockHeld(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &stubAgent{id: "momentum", action: models.ActionHold, conf: 0.4})

	acquired, err := orch.deps.Locks.AcquireLock(context.Background(), "pipeline:cycle:user-1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	summary := orch.RunCycle(context.Background(), "user-1", healthyPortfolio())

	assert.True(t, summary.Skipped)
	assert.Equal(t, "cycle already in flight for user", summary.SkipReason)
}

func TestRunCycleReleasesLock(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &stubAgent{id: "momentum", action: models.ActionHold, conf: 0.4})

	first := orch.RunCycle(context.Background(), "user-1", healthyPortfolio())
	require.False(t, first.Skipped)

	second := orch.RunCycle(context.Background(), "user-1", healthyPortfolio())
	assert.False(t, second.Skipped)
}

func TestRunCycleAgentFailureFoldsToHold(t *testing.T) {
	orch, store, _ := newTestOrchestrator(t,
		&stubAgent{id: "momentum", failErr: errors.New("feed down")},
		&stubAgent{id: "value", action: models.ActionHold, conf: 0.3},
	)

	summary := orch.RunCycle(context.Background(), "user-1", healthyPortfolio())

	assert.False(t, summary.Skipped)
	assert.Equal(t, 2, summary.AgentsRun)
	assert.Equal(t, 1, summary.AgentFailures)
	assert.Equal(t, models.ActionHold, summary.Action)

	// The failed agent still contributes a signal row to the audit trail.
	decisions, err := store.ListDecisions(context.Background(), "user-1", models.DecisionFilter{})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Len(t, decisions[0].Signals, 2)
}

func TestRunCyclePanickingAgentIsContained(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t,
		&panicAgent{},
		&stubAgent{id: "value", action: models.ActionHold, conf: 0.3},
	)

	summary := orch.RunCycle(context.Background(), "user-1", healthyPortfolio())

	assert.Equal(t, 1, summary.AgentFailures)
	assert.Equal(t, 2, summary.AgentsRun)
}

type panicAgent struct{}

func (a *panicAgent) ID() string   { return "panicker" }
func (a *panicAgent) Name() string { return "panicker" }
func (a *panicAgent) Tier() int    { return 1 }
func (a *panicAgent) Analyze(context.Context, agents.MarketSnapshot) (models.Signal, error) {
	panic("boom")
}

func TestRunCycleExecutesHighConfidenceBuy(t *testing.T) {
	orch, store, _ := newTestOrchestrator(t,
		&stubAgent{id: "momentum", action: models.ActionBuy, conf: 0.9},
		&stubAgent{id: "value", action: models.ActionBuy, conf: 0.8},
	)

	summary := orch.RunCycle(context.Background(), "user-1", healthyPortfolio())

	assert.False(t, summary.Skipped)
	assert.Equal(t, models.ActionBuy, summary.Action)
	assert.True(t, summary.Executed)
	assert.Empty(t, summary.Rejections)
	assert.Zero(t, summary.Errors)

	mock := orch.deps.Executor.(*execution.MockExecutor)
	history := mock.History()
	require.Len(t, history, 1)
	assert.Equal(t, "BTC/USDT", history[0].Symbol)
	assert.Equal(t, models.ActionBuy, history[0].Action)
	assert.True(t, history[0].Size.IsPositive())

	decisions, err := store.ListDecisions(context.Background(), "user-1", models.DecisionFilter{})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, models.ActionBuy, decisions[0].Action)
}

func TestRunCycleEmergencyBlocksExecution(t *testing.T) {
	orch, _, emergency := newTestOrchestrator(t,
		&stubAgent{id: "momentum", action: models.ActionBuy, conf: 0.9},
	)

	// 30% peak-to-trough drawdown trips both the circuit breaker and the
	// emergency check.
	portfolio := healthyPortfolio()
	portfolio.EquityCurve = []float64{100000, 70000}

	summary := orch.RunCycle(context.Background(), "user-1", portfolio)

	assert.True(t, emergency.Active())
	assert.False(t, summary.Executed)
	assert.Equal(t, models.ActionHold, summary.Action)
	require.NotEmpty(t, summary.Rejections)
	assert.True(t, strings.HasPrefix(summary.Rejections[0], "emergency stop active:"))
}

func TestRunCycleEmergencyStateIsSticky(t *testing.T) {
	orch, _, emergency := newTestOrchestrator(t,
		&stubAgent{id: "momentum", action: models.ActionBuy, conf: 0.9},
	)
	emergency.Trip("manual trip")

	// Healthy portfolio, but the breaker stays latched until a reset.
	summary := orch.RunCycle(context.Background(), "user-1", healthyPortfolio())

	assert.False(t, summary.Executed)
	assert.Equal(t, models.ActionHold, summary.Action)
	assert.Equal(t, "manual trip", emergency.State().Reason)
}

func TestRunCycleLowConfidenceRejectedByGate(t *testing.T) {
	// Sell wins the vote (0.45 vs 0.36 weight) but its share of the total,
	// 0.56, is under the gate's 0.60 confidence floor.
	orch, _, _ := newTestOrchestrator(t,
		&stubAgent{id: "momentum", action: models.ActionSell, conf: 0.5},
		&stubAgent{id: "value", action: models.ActionBuy, conf: 0.4},
	)

	summary := orch.RunCycle(context.Background(), "user-1", healthyPortfolio())

	assert.Equal(t, models.ActionSell, summary.Action)
	assert.False(t, summary.Executed)
	require.NotEmpty(t, summary.Rejections)
	assert.Contains(t, summary.Rejections[0], "confidence")
}

func signedResetToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestResetEmergencyWithValidToken(t *testing.T) {
	orch, _, emergency := newTestOrchestrator(t)
	emergency.Trip("drawdown breach")
	require.True(t, emergency.Active())

	err := orch.ResetEmergency(signedResetToken(t, "test-secret", "ops"))

	require.NoError(t, err)
	assert.False(t, emergency.Active())
}

func TestResetEmergencyRejectsBadTokens(t *testing.T) {
	orch, _, emergency := newTestOrchestrator(t)
	emergency.Trip("drawdown breach")

	cases := map[string]string{
		"garbage":       "not-a-jwt",
		"wrong secret":  signedResetToken(t, "other-secret", "ops"),
		"empty subject": signedResetToken(t, "test-secret", ""),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			err := orch.ResetEmergency(token)
			assert.ErrorIs(t, err, ErrInvalidResetToken)
			assert.True(t, emergency.Active())
		})
	}
}

func TestOverrideAgentStatus(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &stubAgent{id: "momentum", action: models.ActionHold, conf: 0.4})

	require.NoError(t, orch.OverrideAgentStatus("momentum", models.AgentStatusInactive))

	summary := orch.RunCycle(context.Background(), "user-1", healthyPortfolio())
	assert.Zero(t, summary.AgentsRun)

	assert.Error(t, orch.OverrideAgentStatus("nope", models.AgentStatusActive))
}

func TestMemoryLockerTTL(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	acquired, err := locker.AcquireLock(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = locker.AcquireLock(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, acquired)

	time.Sleep(25 * time.Millisecond)
	acquired, err = locker.AcquireLock(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, locker.ReleaseLock(ctx, "k"))
	acquired, err = locker.AcquireLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

// userStatsProvider serves a fixed market snapshot and trade stats keyed by
// user ID.
type userStatsProvider struct {
	snap  agents.MarketSnapshot
	stats map[string]models.TradeStats
}

func (p *userStatsProvider) MarketSnapshot(_ context.Context, symbol string) (agents.MarketSnapshot, error) {
	snap := p.snap
	if snap.Symbol == "" {
		snap.Symbol = symbol
	}
	return snap, nil
}

func (p *userStatsProvider) TradeStats(_ context.Context, userID string) (models.TradeStats, error) {
	return p.stats[userID], nil
}

func TestRunCycleTradeStatsAreScopedToUser(t *testing.T) {
	orch, store, _ := newTestOrchestrator(t, &stubAgent{id: "momentum", action: models.ActionHold, conf: 0.4})
	orch.deps.Data = &userStatsProvider{
		snap: agents.MarketSnapshot{Symbol: "BTC/USDT", Bars: testBars(10, 50000)},
		stats: map[string]models.TradeStats{
			"user-a": {TotalTrades: 100, Wins: 80, Losses: 20, AvgWin: 150, AvgLoss: -60},
			"user-b": {TotalTrades: 100, Wins: 20, Losses: 80, AvgWin: 40, AvgLoss: -90},
		},
	}

	first := healthyPortfolio()
	first.UserID = "user-a"
	orch.RunCycle(context.Background(), "user-a", first)

	second := healthyPortfolio()
	second.UserID = "user-b"
	summary := orch.RunCycle(context.Background(), "user-b", second)
	require.False(t, summary.Skipped)

	// user-b's hold cycle still records a snapshot, and it carries user-b's
	// own 20% win rate, not whatever the previous user's cycle loaded.
	snaps := store.Snapshots("user-b")
	require.Len(t, snaps, 1)
	assert.InDelta(t, 0.2, snaps[0].WinRate, 1e-9)
	assert.Equal(t, 40.0, snaps[0].AvgWin)
	assert.Equal(t, -90.0, snaps[0].AvgLoss)
}

func TestRunCycleWithMarketOverridesProvider(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t,
		&stubAgent{id: "momentum", action: models.ActionBuy, conf: 0.9},
		&stubAgent{id: "value", action: models.ActionBuy, conf: 0.8},
	)

	// The configured provider quotes 50000; the trigger carries 42000 bars
	// for a different symbol, and the fill must come from the trigger.
	market := &agents.MarketSnapshot{Symbol: "ETH/USDT", Bars: testBars(10, 42000)}
	summary := orch.RunCycleWithMarket(context.Background(), "user-1", healthyPortfolio(), market)

	require.True(t, summary.Executed)
	history := orch.deps.Executor.(*execution.MockExecutor).History()
	require.Len(t, history, 1)
	assert.Equal(t, "ETH/USDT", history[0].Symbol)
	assert.InDelta(t, 42000, history[0].FillPrice.InexactFloat64(), 42000*0.002)
}

func TestRunCycleWithMarketFillsDefaultSymbol(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t,
		&stubAgent{id: "momentum", action: models.ActionBuy, conf: 0.9},
		&stubAgent{id: "value", action: models.ActionBuy, conf: 0.8},
	)

	market := &agents.MarketSnapshot{Bars: testBars(10, 42000)}
	summary := orch.RunCycleWithMarket(context.Background(), "user-1", healthyPortfolio(), market)

	require.True(t, summary.Executed)
	history := orch.deps.Executor.(*execution.MockExecutor).History()
	require.Len(t, history, 1)
	assert.Equal(t, "BTC/USDT", history[0].Symbol)
}

func TestStaticDataProviderFillsSymbol(t *testing.T) {
	provider := &StaticDataProvider{Snap: agents.MarketSnapshot{Bars: testBars(3, 100)}}

	snap, err := provider.MarketSnapshot(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", snap.Symbol)
	assert.Equal(t, 100.0, snap.LastClose())
}
