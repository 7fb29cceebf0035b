// internal/infra/logger/logger.go
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"recurring_events/internal/infra/config"
)

// Log is the global logger instance
var Log = logrus.New()

// Init configures the global logger: JSON in production and staging, text otherwise.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.LogLevel, err)
		Log.SetLevel(logrus.InfoLevel)
	} else {
		Log.SetLevel(level)
	}

	switch strings.ToLower(cfg.Environment) {
	case "production", "staging":
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	Log.WithFields(logrus.Fields{"level": Log.GetLevel().String(), "environment": cfg.Environment}).Debug("Logger initialized")
}

// Component returns an entry tagged with the component name, the base every service
// logger derives from.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
