package execution

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// Executor places orders for approved decisions.
type Executor interface {
	Execute(ctx context.Context, order models.Order) (*models.ExecutionResult, error)
}

var ErrZeroSize = errors.New("execution: order size must be positive")

// maxSlippagePct bounds the simulated fill deviation from the limit price.
const maxSlippagePct = 0.001

// MockExecutor simulates fills without touching an exchange. Fill prices
// deviate from the limit price by a uniform random slippage within
// ±maxSlippagePct, which keeps downstream accounting honest about price
// uncertainty.
type MockExecutor struct {
	logger *logrus.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	orders []models.ExecutionResult
}

func NewMockExecutor(logger *logrus.Logger) *MockExecutor {
	return &MockExecutor{
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *MockExecutor) Execute(ctx context.Context, order models.Order) (*models.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if order.Size.LessThanOrEqual(decimal.Zero) {
		return nil, ErrZeroSize
	}

	e.mu.Lock()
	slip := (e.rng.Float64()*2 - 1) * maxSlippagePct
	e.mu.Unlock()

	fillPrice := order.LimitPrice.Mul(decimal.NewFromFloat(1 + slip))

	result := models.ExecutionResult{
		OrderID:    uuid.New().String(),
		Symbol:     order.Symbol,
		Action:     order.Action,
		Size:       order.Size,
		FillPrice:  fillPrice,
		Slippage:   slip,
		ExecutedAt: time.Now().UTC(),
	}

	e.mu.Lock()
	e.orders = append(e.orders, result)
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"order_id":   result.OrderID,
		"symbol":     order.Symbol,
		"action":     order.Action,
		"size":       order.Size.String(),
		"fill_price": fillPrice.String(),
		"slippage":   slip,
	}).Info("Simulated order fill")

	return &result, nil
}

// History returns a copy of all simulated fills, oldest first.
func (e *MockExecutor) History() []models.ExecutionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.ExecutionResult, len(e.orders))
	copy(out, e.orders)
	return out
}
