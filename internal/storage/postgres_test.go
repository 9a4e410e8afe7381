package storage

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantara-ai/quantara-go/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPostgresStore_GetAgent(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := NewPostgresStore(mockPool, testLogger())

	rows := pgxmock.NewRows([]string{"id", "name", "tier", "status", "success_rate", "decision_count"}).
		AddRow("momentum", "Momentum", 1, models.AgentStatusActive, 0.55, int64(12))
	mockPool.ExpectQuery(`SELECT id, name, tier, status, success_rate, decision_count FROM agents`).
		WithArgs("momentum").
		WillReturnRows(rows)

	agent, err := store.GetAgent(context.Background(), "momentum")

	require.NoError(t, err)
	assert.Equal(t, "momentum", agent.ID)
	assert.Equal(t, 0.55, agent.SuccessRate)
	assert.Equal(t, int64(12), agent.DecisionCount)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_GetAgent_NotFound(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := NewPostgresStore(mockPool, testLogger())

	mockPool.ExpectQuery(`SELECT id, name, tier, status, success_rate, decision_count FROM agents`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "tier", "status", "success_rate", "decision_count"}))

	_, err = store.GetAgent(context.Background(), "ghost")

	assert.ErrorContains(t, err, "not found")
}

func TestPostgresStore_UpsertAgent(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := NewPostgresStore(mockPool, testLogger())

	mockPool.ExpectExec(`INSERT INTO agents`).
		WithArgs("value", "Value", 2, models.AgentStatusActive, 0.52, int64(0)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.UpsertAgent(context.Background(), models.AgentInfo{
		ID: "value", Name: "Value", Tier: 2, Status: models.AgentStatusActive, SuccessRate: 0.52,
	})

	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_AppendDecision(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := NewPostgresStore(mockPool, testLogger())

	decision := models.Decision{
		ID:         "d-1",
		UserID:     "user-1",
		Action:     models.ActionBuy,
		Confidence: 0.56,
		AgentCount: 4,
		Rationale:  "buy wins",
		Signals:    []models.Signal{{AgentID: "momentum", Action: models.ActionBuy, Confidence: 0.9}},
		Timestamp:  time.Now(),
	}
	signals, err := json.Marshal(decision.Signals)
	require.NoError(t, err)

	mockPool.ExpectExec(`INSERT INTO decisions`).
		WithArgs(decision.ID, decision.UserID, decision.Action, decision.Confidence,
			decision.ConsensusStrength, decision.AgentCount, decision.DissenterCount,
			decision.Rationale, signals, decision.Timestamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.AppendDecision(context.Background(), decision))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_ListDecisions_FilterBuildsPositionalArgs(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := NewPostgresStore(mockPool, testLogger())

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "action", "confidence", "consensus_strength",
		"agent_count", "dissenter_count", "rationale", "signals", "created_at",
	}).AddRow("d-1", "user-1", models.ActionBuy, 0.7, 0.7, 3, 1, "ok", []byte(`[]`), since)

	mockPool.ExpectQuery(`SELECT .* FROM decisions WHERE user_id = \$1 AND action = \$2 AND created_at >= \$3 ORDER BY created_at DESC LIMIT \$4`).
		WithArgs("user-1", models.ActionBuy, since, 5).
		WillReturnRows(rows)

	decisions, err := store.ListDecisions(context.Background(), "user-1", models.DecisionFilter{
		Action: models.ActionBuy,
		Since:  since,
		Limit:  5,
	})

	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "d-1", decisions[0].ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, models.AgentInfo{ID: "momentum", SuccessRate: 0.6}))
	agent, err := store.GetAgent(ctx, "momentum")
	require.NoError(t, err)
	assert.Equal(t, 0.6, agent.SuccessRate)

	_, err = store.GetAgent(ctx, "ghost")
	assert.Error(t, err)
}

func TestMemoryStore_ListDecisionsNewestFirstWithFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i, action := range []models.Action{models.ActionBuy, models.ActionSell, models.ActionBuy} {
		require.NoError(t, store.AppendDecision(ctx, models.Decision{
			ID:        string(rune('a' + i)),
			UserID:    "user-1",
			Action:    action,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := store.ListDecisions(ctx, "user-1", models.DecisionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	buys, err := store.ListDecisions(ctx, "user-1", models.DecisionFilter{Action: models.ActionBuy})
	require.NoError(t, err)
	require.Len(t, buys, 2)

	limited, err := store.ListDecisions(ctx, "user-1", models.DecisionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	other, err := store.ListDecisions(ctx, "user-2", models.DecisionFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
