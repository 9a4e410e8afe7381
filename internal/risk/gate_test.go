package risk

import (
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/quantara-ai/quantara-go/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sizedResult(dollars int64) *models.SizingResult {
	size := decimal.NewFromInt(dollars)
	return &models.SizingResult{RecommendedSize: size, MaxSize: size, ActualSize: size}
}

func TestGate_Approves(t *testing.T) {
	gate := NewGate(testLogger())

	result := gate.Check(models.Decision{Action: models.ActionBuy, Confidence: 0.75}, 5, sizedResult(5000))

	assert.True(t, result.Approved)
}

func TestGate_RejectsOnPositionCountFirst(t *testing.T) {
	gate := NewGate(testLogger())

	// Even with low confidence and no size, position count is the reported
	// reason: checks run in a fixed order.
	result := gate.Check(models.Decision{Confidence: 0.1}, 20, nil)

	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "open position count 20")
}

func TestGate_PositionCountBoundary(t *testing.T) {
	gate := NewGate(testLogger())

	at := gate.Check(models.Decision{Confidence: 0.9}, 20, sizedResult(1000))
	below := gate.Check(models.Decision{Confidence: 0.9}, 19, sizedResult(1000))

	assert.False(t, at.Approved)
	assert.True(t, below.Approved)
}

func TestGate_RejectsOnConfidence(t *testing.T) {
	gate := NewGate(testLogger())

	result := gate.Check(models.Decision{Confidence: 0.59}, 0, sizedResult(1000))

	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "confidence 0.59 below")

	// Exactly at the floor passes.
	assert.True(t, gate.Check(models.Decision{Confidence: 0.6}, 0, sizedResult(1000)).Approved)
}

func TestGate_RejectsWithoutSize(t *testing.T) {
	gate := NewGate(testLogger())

	assert.False(t, gate.Check(models.Decision{Confidence: 0.9}, 0, nil).Approved)
	assert.False(t, gate.Check(models.Decision{Confidence: 0.9}, 0, sizedResult(0)).Approved)
}
