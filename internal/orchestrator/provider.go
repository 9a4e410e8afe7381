package orchestrator

import (
	"context"

	"github.com/quantara-ai/quantara-go/internal/agents"
	"github.com/quantara-ai/quantara-go/internal/models"
)

// StaticDataProvider serves a fixed snapshot and trade history. Used by the
// one-shot CLI mode and tests; a live deployment plugs in an exchange-backed
// provider instead.
type StaticDataProvider struct {
	Snap  agents.MarketSnapshot
	Stats models.TradeStats
}

func (p *StaticDataProvider) MarketSnapshot(_ context.Context, symbol string) (agents.MarketSnapshot, error) {
	snap := p.Snap
	if snap.Symbol == "" {
		snap.Symbol = symbol
	}
	return snap, nil
}

func (p *StaticDataProvider) TradeStats(context.Context, string) (models.TradeStats, error) {
	return p.Stats, nil
}
