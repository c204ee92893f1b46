package logging

import (
	"github.com/sirupsen/logrus"

	"tableflow/maitre/pkg/config"
)

// Logger is the service-wide structured logger.
type Logger = *logrus.Logger

// Fields is a map of structured log fields.
type Fields = logrus.Fields

// NewLogger creates a JSON logger honoring LOG_LEVEL.
func NewLogger() Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithService creates a logger with a default service field.
func NewLoggerWithService(service string) Logger {
	logger := NewLogger()
	logger.AddHook(&serviceHook{service: service})
	return logger
}

type serviceHook struct {
	service string
}

func (h *serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.service
	}
	return nil
}
