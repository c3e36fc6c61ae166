package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const contextLogger = "logger"

// RequestLogger logs the start and completion of every request and stores a
// request scoped entry for handlers to log through.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"remoteaddr": c.ClientIP(),
		})
		if rid := GetRequestID(c); rid != "" {
			entry = entry.WithField("req_id", rid)
		}
		c.Set(contextLogger, entry)

		entry.Debug("started")
		start := time.Now()

		c.Next()

		entry = entry.WithFields(logrus.Fields{
			"statuscode": c.Writer.Status(),
			"bytes":      c.Writer.Size(),
			"since":      time.Since(start).String(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("completed")
		case c.Writer.Status() >= 400:
			entry.Warn("completed")
		default:
			entry.Info("completed")
		}
	}
}

// Logger returns the request scoped log entry, falling back to the standard logger
func Logger(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(contextLogger); ok {
		if entry, ok := v.(logrus.FieldLogger); ok {
			return entry
		}
	}
	entry := logrus.WithField("path", c.Request.URL.Path)
	if rid := GetRequestID(c); rid != "" {
		entry = entry.WithField("req_id", rid)
	}
	return entry
}
