package risk

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// ErrUnauthorizedReset is returned when an emergency reset lacks a valid
// operator authorization.
var ErrUnauthorizedReset = errors.New("emergency reset requires operator authorization")

// EmergencyManager owns the emergency flag. Trips retain their reason and
// timestamp; only an explicit authorized reset clears the state, never time
// or a new cycle.
type EmergencyManager struct {
	mu     sync.RWMutex
	state  models.EmergencyState
	logger *logrus.Logger
}

// NewEmergencyManager creates an emergency manager in the inactive state.
func NewEmergencyManager(logger *logrus.Logger) *EmergencyManager {
	return &EmergencyManager{logger: logger}
}

// Trip activates the emergency state. A second trip while active keeps the
// original reason and timestamp.
func (m *EmergencyManager) Trip(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Active {
		return
	}
	m.state = models.EmergencyState{
		Active:      true,
		Reason:      reason,
		TriggeredAt: time.Now(),
	}
	m.logger.WithField("reason", reason).Error("Emergency state activated, halting all new orders")
}

// Active reports whether trading is halted.
func (m *EmergencyManager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Active
}

// State returns a copy of the current emergency state.
func (m *EmergencyManager) State() models.EmergencyState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Reset clears the emergency state. authorized comes from the operator
// layer's token check; an unauthorized reset never silently succeeds.
func (m *EmergencyManager) Reset(authorized bool, operator string) error {
	if !authorized {
		m.logger.WithField("operator", operator).Warn("Rejected unauthorized emergency reset")
		return ErrUnauthorizedReset
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = models.EmergencyState{}
	m.logger.WithField("operator", operator).Info("Emergency state reset by operator")
	return nil
}
