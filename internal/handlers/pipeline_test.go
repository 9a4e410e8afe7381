package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantara-ai/quantara-go/internal/agents"
	"github.com/quantara-ai/quantara-go/internal/aggregator"
	"github.com/quantara-ai/quantara-go/internal/execution"
	"github.com/quantara-ai/quantara-go/internal/models"
	"github.com/quantara-ai/quantara-go/internal/monitoring"
	"github.com/quantara-ai/quantara-go/internal/orchestrator"
	"github.com/quantara-ai/quantara-go/internal/risk"
	"github.com/quantara-ai/quantara-go/internal/storage"
)

type holdAgent struct{}

func (holdAgent) ID() string   { return "momentum" }
func (holdAgent) Name() string { return "momentum" }
func (holdAgent) Tier() int    { return 1 }
func (holdAgent) Analyze(context.Context, agents.MarketSnapshot) (models.Signal, error) {
	return models.Signal{
		AgentID:    "momentum",
		Action:     models.ActionHold,
		Confidence: 0.4,
		Rationale:  "flat",
		Timestamp:  time.Now(),
	}, nil
}

// echoAgent records the snapshot it was handed and holds.
type echoAgent struct{ seen *agents.MarketSnapshot }

func (echoAgent) ID() string   { return "echo" }
func (echoAgent) Name() string { return "echo" }
func (echoAgent) Tier() int    { return 1 }
func (a echoAgent) Analyze(_ context.Context, snap agents.MarketSnapshot) (models.Signal, error) {
	*a.seen = snap
	return models.Signal{
		AgentID:    "echo",
		Action:     models.ActionHold,
		Confidence: 0.4,
		Rationale:  "flat",
		Timestamp:  time.Now(),
	}, nil
}

func newTestRouter(t *testing.T, extra ...agents.Agent) (*gin.Engine, *orchestrator.Orchestrator, *storage.MemoryStore, *risk.EmergencyManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry := agents.NewRegistry()
	registry.Register(holdAgent{}, 0.6)
	for _, a := range extra {
		registry.Register(a, 0.6)
	}

	store := storage.NewMemoryStore()
	emergency := risk.NewEmergencyManager(logger)

	orch := orchestrator.New(
		orchestrator.Config{
			Symbol:       "BTC/USDT",
			AgentTimeout: time.Second,
			LockTTL:      time.Second,
			JWTSecret:    "test-secret",
		},
		orchestrator.Deps{
			Registry:   registry,
			Aggregator: aggregator.New(logger),
			Sizer:      risk.NewSizer(logger),
			Gate:       risk.NewGate(logger),
			Drawdown:   risk.NewDrawdownMonitor(0.25, logger),
			Emergency:  emergency,
			Monitor:    monitoring.NewMonitor(0.05, logger),
			Store:      store,
			Executor:   execution.NewMockExecutor(logger),
			Data: &orchestrator.StaticDataProvider{
				Snap: agents.MarketSnapshot{
					Symbol: "BTC/USDT",
					Bars: []models.PriceBar{
						{Timestamp: time.Now(), Open: 50000, High: 50100, Low: 49900, Close: 50000, Volume: 10},
					},
				},
			},
			Locks:  orchestrator.NewMemoryLocker(),
			Logger: logger,
		},
	)

	handler := NewPipelineHandler(orch, store, nil, nil, logger)
	router := gin.New()
	handler.SetupRoutes(router)
	return router, orch, store, emergency
}

func doRequest(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthWithoutBackends(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "not configured", resp.Services["database"])
	assert.Equal(t, "not configured", resp.Services["redis"])
}

func TestTriggerCycle(t *testing.T) {
	router, _, store, _ := newTestRouter(t)

	body := `{"portfolio":{"user_id":"ignored","value":"100000","equity_curve":[99000,100000]}}`
	w := doRequest(router, http.MethodPost, "/api/v1/cycles/user-1", body, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var summary models.CycleSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "user-1", summary.UserID)
	assert.False(t, summary.Skipped)
	assert.Equal(t, 1, summary.AgentsRun)
	assert.Equal(t, models.ActionHold, summary.Action)

	// The path parameter wins over whatever user id the body claims.
	decisions, err := store.ListDecisions(context.Background(), "user-1", models.DecisionFilter{})
	require.NoError(t, err)
	assert.Len(t, decisions, 1)
}

func TestTriggerCycleWithMarketBody(t *testing.T) {
	var seen agents.MarketSnapshot
	router, _, _, _ := newTestRouter(t, echoAgent{seen: &seen})

	// The scheduler may carry the market snapshot in the trigger; agents must
	// then analyze that snapshot, not the configured provider's.
	body := `{"portfolio":{"user_id":"user-1","value":"100000","equity_curve":[99000,100000]},` +
		`"market":{"symbol":"ETH/USDT","bars":[` +
		`{"timestamp":"2026-08-28T00:00:00Z","open":42000,"high":42100,"low":41900,"close":42000,"volume":5}]}}`
	w := doRequest(router, http.MethodPost, "/api/v1/cycles/user-1", body, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ETH/USDT", seen.Symbol)
	require.Len(t, seen.Bars, 1)
	assert.Equal(t, 42000.0, seen.Bars[0].Close)
}

func TestTriggerCycleBadBody(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/cycles/user-1", `{"portfolio":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSystemStartStop(t *testing.T) {
	router, orch, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/system/stop", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, orch.Active())

	w = doRequest(router, http.MethodGet, "/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":false`)

	w = doRequest(router, http.MethodPost, "/api/v1/system/start", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, orch.Active())
}

func TestListDecisions(t *testing.T) {
	router, _, store, _ := newTestRouter(t)

	require.NoError(t, store.AppendDecision(context.Background(), models.Decision{
		ID:        "d1",
		UserID:    "user-1",
		Action:    models.ActionBuy,
		Timestamp: time.Now(),
	}))
	require.NoError(t, store.AppendDecision(context.Background(), models.Decision{
		ID:        "d2",
		UserID:    "user-1",
		Action:    models.ActionHold,
		Timestamp: time.Now(),
	}))

	w := doRequest(router, http.MethodGet, "/api/v1/decisions/user-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":2`)

	w = doRequest(router, http.MethodGet, "/api/v1/decisions/user-1?action=buy", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = doRequest(router, http.MethodGet, "/api/v1/decisions/user-1?since=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOverrideAgent(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPut, "/api/v1/agents/momentum/status", `{"status":"inactive"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodPut, "/api/v1/agents/momentum/status", `{"status":"error"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPut, "/api/v1/agents/unknown/status", `{"status":"active"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetEmergency(t *testing.T) {
	router, _, _, emergency := newTestRouter(t)
	emergency.Trip("drawdown breach")

	w := doRequest(router, http.MethodPost, "/api/v1/emergency/reset", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/emergency/reset", "", map[string]string{
		"Authorization": "Bearer not-a-jwt",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, emergency.Active())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	w = doRequest(router, http.MethodPost, "/api/v1/emergency/reset", "", map[string]string{
		"Authorization": "Bearer " + signed,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, emergency.Active())
}
