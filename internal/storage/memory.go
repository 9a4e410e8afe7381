package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// MemoryStore is an in-process Store for tests and one-shot runs.
type MemoryStore struct {
	mu        sync.RWMutex
	agents    map[string]models.AgentInfo
	decisions map[string][]models.Decision
	snapshots map[string][]models.MonitoringSnapshot
	alerts    map[string][]models.Alert
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:    make(map[string]models.AgentInfo),
		decisions: make(map[string][]models.Decision),
		snapshots: make(map[string][]models.MonitoringSnapshot),
		alerts:    make(map[string][]models.Alert),
	}
}

func (s *MemoryStore) GetAgent(_ context.Context, id string) (*models.AgentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %q not found", id)
	}
	return &agent, nil
}

func (s *MemoryStore) UpsertAgent(_ context.Context, agent models.AgentInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent
	return nil
}

func (s *MemoryStore) AppendDecision(_ context.Context, decision models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[decision.UserID] = append(s.decisions[decision.UserID], decision)
	return nil
}

func (s *MemoryStore) AppendSnapshot(_ context.Context, snap models.MonitoringSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.UserID] = append(s.snapshots[snap.UserID], snap)
	return nil
}

func (s *MemoryStore) AppendAlert(_ context.Context, userID string, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[userID] = append(s.alerts[userID], alert)
	return nil
}

func (s *MemoryStore) ListDecisions(_ context.Context, userID string, filter models.DecisionFilter) ([]models.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.decisions[userID]
	out := make([]models.Decision, 0, len(stored))
	// Newest first, matching the Postgres ordering.
	for i := len(stored) - 1; i >= 0; i-- {
		d := stored[i]
		if filter.Action != "" && d.Action != filter.Action {
			continue
		}
		if !filter.Since.IsZero() && d.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, d)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Snapshots returns all stored snapshots for a user; test helper.
func (s *MemoryStore) Snapshots(userID string) []models.MonitoringSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.MonitoringSnapshot(nil), s.snapshots[userID]...)
}
