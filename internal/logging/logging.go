package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text formatter with debug level.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	if env == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetOutput(os.Stdout)
}

// WithRequest returns a logger with request context fields attached.
func WithRequest(requestID, label string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"request_id": requestID,
		"label":      label,
	})
}
