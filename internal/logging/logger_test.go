package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewDevelopmentUsesTextFormat(t *testing.T) {
	logger := New("development", "debug")

	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNewProductionUsesJSONFormat(t *testing.T) {
	logger := New("production", "warn")

	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	logger := New("production", "loud")

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
