// Package agents contains the independent signal-producing strategies and the
// registry the orchestrator owns. Agents are pure given their snapshot and
// safe to evaluate in parallel.
package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// Agent tiers group strategies by functional role.
const (
	TierMarketIntelligence = 1
	TierStrategyEngine     = 2
	TierMachineLearning    = 3
)

// VenueQuote is one venue's current price and taker fee for the instrument.
type VenueQuote struct {
	Venue string          `json:"venue"`
	Price decimal.Decimal `json:"price"`
	Fee   float64         `json:"fee"` // fraction, e.g. 0.001
}

// PairSeries holds two aligned price series for pairs trading.
type PairSeries struct {
	SymbolA string    `json:"symbol_a"`
	SymbolB string    `json:"symbol_b"`
	PricesA []float64 `json:"prices_a"`
	PricesB []float64 `json:"prices_b"`
}

// Fundamentals carries the valuation ratios the value strategy thresholds.
type Fundamentals struct {
	PERatio float64 `json:"pe_ratio"`
	PBRatio float64 `json:"pb_ratio"`
}

// MarketSnapshot is the read-only cycle input every agent analyzes. It is
// JSON-bindable so the scheduler can carry market data in the cycle trigger.
type MarketSnapshot struct {
	Symbol       string            `json:"symbol"`
	Bars         []models.PriceBar `json:"bars"`
	Venues       []VenueQuote      `json:"venues,omitempty"`
	Pair         *PairSeries       `json:"pair,omitempty"`
	Fundamentals *Fundamentals     `json:"fundamentals,omitempty"`
}

// LastClose returns the most recent close, 0 when no bars exist.
func (s MarketSnapshot) LastClose() float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// Agent is one independent scoring strategy.
type Agent interface {
	ID() string
	Name() string
	Tier() int
	Analyze(ctx context.Context, snap MarketSnapshot) (models.Signal, error)
}

// holdSignal builds the degenerate-input fallback every agent shares: a
// zero-confidence hold that still explains itself.
func holdSignal(agentID, rationale string) models.Signal {
	return models.Signal{
		AgentID:   agentID,
		Action:    models.ActionHold,
		Rationale: rationale,
		Timestamp: time.Now(),
	}
}

// Registry is the orchestrator-owned agent table. It replaces any ambient
// global state so concurrent user cycles in one process cannot cross-talk.
// Writes happen under the per-user single-writer discipline; reads from
// status or monitoring callers may observe slightly stale snapshots.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
	info   map[string]*models.AgentInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
		info:   make(map[string]*models.AgentInfo),
	}
}

// Register adds an agent with a success-rate prior. Re-registering an id
// replaces the previous entry.
func (r *Registry) Register(agent Agent, successRate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.ID()] = agent
	r.info[agent.ID()] = &models.AgentInfo{
		ID:          agent.ID(),
		Name:        agent.Name(),
		Tier:        agent.Tier(),
		Status:      models.AgentStatusActive,
		SuccessRate: successRate,
	}
}

// Get returns the agent and its registry entry.
func (r *Registry) Get(id string) (Agent, models.AgentInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[id]
	if !ok {
		return nil, models.AgentInfo{}, fmt.Errorf("agent %q not registered", id)
	}
	return agent, *r.info[id], nil
}

// Active returns the agents currently eligible to run, ordered by id for
// deterministic fan-out.
func (r *Registry) Active() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Agent
	for id, agent := range r.agents {
		if r.info[id].Status == models.AgentStatusActive {
			out = append(out, agent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// SetStatus applies an operator override to one agent.
func (r *Registry) SetStatus(id string, status models.AgentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.info[id]
	if !ok {
		return fmt.Errorf("agent %q not registered", id)
	}
	info.Status = status
	return nil
}

// SetSuccessRate overrides an agent's voting-weight prior.
func (r *Registry) SetSuccessRate(id string, rate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.info[id]
	if !ok {
		return fmt.Errorf("agent %q not registered", id)
	}
	info.SuccessRate = rate
	return nil
}

// IncrementDecisions bumps the decision counter for agents that contributed
// to a cycle.
func (r *Registry) IncrementDecisions(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if info, ok := r.info[id]; ok {
			info.DecisionCount++
		}
	}
}

// Priors returns the success-rate weight of every registered agent.
func (r *Registry) Priors() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, len(r.info))
	for id, info := range r.info {
		out[id] = info.SuccessRate
	}
	return out
}

// Snapshot returns a copy of every registry entry, ordered by tier then id.
func (r *Registry) Snapshot() []models.AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AgentInfo, 0, len(r.info))
	for _, info := range r.info {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].ID < out[j].ID
	})
	return out
}
