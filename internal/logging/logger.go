package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process-wide logger. Production environments emit JSON so
// log shippers can index fields; development keeps the human-readable text
// formatter with timestamps.
func New(environment, level string) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if strings.ToLower(environment) == "development" {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	return logger
}
