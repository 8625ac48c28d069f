// Package logging builds the process logger.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logrus logger writing to stderr at the given level. format is
// "json" or "text"; anything else falls back to text. An unknown level falls
// back to info and is reported on the returned logger.
func New(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		logger.WithField("level", level).Warn("unknown log level, using info")
		return logger
	}
	logger.SetLevel(lvl)
	return logger
}
