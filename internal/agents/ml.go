package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/inference"
	"github.com/quantara-ai/quantara-go/internal/models"
)

// Predictor is the slice of the inference client the ML agent needs.
type Predictor interface {
	Complete(ctx context.Context, prompt string, opts inference.Options) (*inference.Prediction, error)
}

// MLPredictorAgent maps an external inference call onto the common signal
// shape. Any unavailability or failure degrades to a zero-confidence hold;
// the fan-out never sees an error from this agent.
type MLPredictorAgent struct {
	id        string
	predictor Predictor
	logger    *logrus.Logger
}

// NewMLPredictorAgent creates the ML prediction agent. predictor may be nil
// when no inference collaborator is configured.
func NewMLPredictorAgent(predictor Predictor, logger *logrus.Logger) *MLPredictorAgent {
	return &MLPredictorAgent{id: "ml_predictor", predictor: predictor, logger: logger}
}

func (a *MLPredictorAgent) ID() string   { return a.id }
func (a *MLPredictorAgent) Name() string { return "ML Predictor" }
func (a *MLPredictorAgent) Tier() int    { return TierMachineLearning }

func (a *MLPredictorAgent) Analyze(ctx context.Context, snap MarketSnapshot) (models.Signal, error) {
	if a.predictor == nil {
		return holdSignal(a.id, "inference collaborator not configured"), nil
	}
	if len(snap.Bars) == 0 {
		return holdSignal(a.id, "no price history to describe to the model"), nil
	}

	pred, err := a.predictor.Complete(ctx, a.buildPrompt(snap), inference.Options{
		MaxTokens:   256,
		Temperature: 0.2,
	})
	if err != nil {
		a.logger.WithError(err).WithField("agent", a.id).Warn("Inference call failed, degrading to hold")
		return holdSignal(a.id, fmt.Sprintf("inference unavailable: %v", err)), nil
	}

	return models.Signal{
		AgentID:    a.id,
		Action:     pred.Action,
		Confidence: pred.Confidence,
		Rationale:  fmt.Sprintf("model prediction: %s", pred.Rationale),
		Timestamp:  time.Now(),
	}, nil
}

func (a *MLPredictorAgent) buildPrompt(snap MarketSnapshot) string {
	last := snap.Bars[len(snap.Bars)-1]
	return fmt.Sprintf(
		"Given %d recent bars for %s with last close %.4f and last volume %.2f, "+
			"respond with JSON {action, confidence, rationale} where action is buy, sell or hold.",
		len(snap.Bars), snap.Symbol, last.Close, last.Volume)
}
