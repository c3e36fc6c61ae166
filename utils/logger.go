package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the application logger, configured by InitLogger
var Log = logrus.New()

// InitLogger sets the level and format of Log. Production logs are JSON.
func InitLogger(level string, production bool) *logrus.Logger {
	Log.SetOutput(os.Stdout)

	if production {
		Log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		Log.WithField("level", level).Warn("Unknown LOG_LEVEL, using info")
	}
	Log.SetLevel(lvl)

	return Log
}
