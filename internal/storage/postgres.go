package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/database"
	"github.com/quantara-ai/quantara-go/internal/models"
)

// PostgresStore persists pipeline artifacts through the shared pgx pool.
type PostgresStore struct {
	db     database.DatabasePool
	logger *logrus.Logger
}

// NewPostgresStore creates a store over an established connection pool.
func NewPostgresStore(db database.DatabasePool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// GetAgent loads one registry entry.
func (s *PostgresStore) GetAgent(ctx context.Context, id string) (*models.AgentInfo, error) {
	query := `SELECT id, name, tier, status, success_rate, decision_count FROM agents WHERE id = $1`
	var agent models.AgentInfo
	err := s.db.QueryRow(ctx, query, id).Scan(
		&agent.ID, &agent.Name, &agent.Tier, &agent.Status, &agent.SuccessRate, &agent.DecisionCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("agent %q not found", id)
		}
		return nil, fmt.Errorf("failed to load agent %q: %w", id, err)
	}
	return &agent, nil
}

// UpsertAgent writes a registry entry, replacing any previous row.
func (s *PostgresStore) UpsertAgent(ctx context.Context, agent models.AgentInfo) error {
	query := `INSERT INTO agents (id, name, tier, status, success_rate, decision_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			success_rate = EXCLUDED.success_rate,
			decision_count = EXCLUDED.decision_count`
	_, err := s.db.Exec(ctx, query,
		agent.ID, agent.Name, agent.Tier, agent.Status, agent.SuccessRate, agent.DecisionCount)
	if err != nil {
		return fmt.Errorf("failed to upsert agent %q: %w", agent.ID, err)
	}
	return nil
}

// AppendDecision stores one cycle decision with its contributing signals as
// JSONB.
func (s *PostgresStore) AppendDecision(ctx context.Context, decision models.Decision) error {
	signals, err := json.Marshal(decision.Signals)
	if err != nil {
		return fmt.Errorf("failed to encode decision signals: %w", err)
	}
	query := `INSERT INTO decisions
		(id, user_id, action, confidence, consensus_strength, agent_count, dissenter_count, rationale, signals, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = s.db.Exec(ctx, query,
		decision.ID, decision.UserID, decision.Action, decision.Confidence,
		decision.ConsensusStrength, decision.AgentCount, decision.DissenterCount,
		decision.Rationale, signals, decision.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append decision %q: %w", decision.ID, err)
	}
	return nil
}

// AppendSnapshot stores one monitoring snapshot.
func (s *PostgresStore) AppendSnapshot(ctx context.Context, snap models.MonitoringSnapshot) error {
	query := `INSERT INTO monitoring_snapshots
		(id, user_id, total_return, daily_return, sharpe_ratio, max_drawdown, win_rate,
		 volatility, var_95, expected_shortfall, concentration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.db.Exec(ctx, query,
		snap.ID, snap.UserID, snap.TotalReturn, snap.DailyReturn, snap.SharpeRatio,
		snap.MaxDrawdown, snap.WinRate, snap.Volatility, snap.VaR95, snap.ExpectedShort,
		snap.Concentration, snap.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append monitoring snapshot: %w", err)
	}
	return nil
}

// AppendAlert stores a single alert for history.
func (s *PostgresStore) AppendAlert(ctx context.Context, userID string, alert models.Alert) error {
	query := `INSERT INTO alerts (id, user_id, type, severity, message, required_action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.Exec(ctx, query,
		alert.ID, userID, alert.Type, alert.Severity, alert.Message, alert.RequiredAction, alert.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append alert: %w", err)
	}
	return nil
}

// ListDecisions returns a user's decisions, newest first, narrowed by the
// filter.
func (s *PostgresStore) ListDecisions(ctx context.Context, userID string, filter models.DecisionFilter) ([]models.Decision, error) {
	query := `SELECT id, user_id, action, confidence, consensus_strength, agent_count,
		dissenter_count, rationale, signals, created_at
		FROM decisions WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []models.Decision
	for rows.Next() {
		var d models.Decision
		var signals []byte
		if err := rows.Scan(&d.ID, &d.UserID, &d.Action, &d.Confidence, &d.ConsensusStrength,
			&d.AgentCount, &d.DissenterCount, &d.Rationale, &signals, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		if len(signals) > 0 {
			if err := json.Unmarshal(signals, &d.Signals); err != nil {
				s.logger.WithError(err).WithField("decision_id", d.ID).Warn("Failed to decode stored signals")
			}
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
