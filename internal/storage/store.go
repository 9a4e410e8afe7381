// Package storage defines the abstract persistence surface the pipeline
// needs and its Postgres and in-memory implementations. The core never
// assumes a storage technology; write failures are logged by callers and
// must not abort a cycle.
package storage

import (
	"context"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// Store is the persistence contract the orchestrator depends on.
type Store interface {
	GetAgent(ctx context.Context, id string) (*models.AgentInfo, error)
	UpsertAgent(ctx context.Context, agent models.AgentInfo) error
	AppendDecision(ctx context.Context, decision models.Decision) error
	AppendSnapshot(ctx context.Context, snapshot models.MonitoringSnapshot) error
	AppendAlert(ctx context.Context, userID string, alert models.Alert) error
	ListDecisions(ctx context.Context, userID string, filter models.DecisionFilter) ([]models.Decision, error)
}
