// Package logging holds the service-wide logrus logger.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

var Log = base.WithFields(logrus.Fields{
	"service": "pdftext",
})

// SetupLogging sets the level and output format of Log. Unknown levels fall
// back to info; format is "text" or "json".
func SetupLogging(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	base.SetOutput(os.Stderr)
	switch strings.ToLower(format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if err != nil && level != "" {
		Log.WithField("level", level).Warn("unknown log level, using info")
	}
}

// Logger returns the underlying logrus logger, for hooks and tests.
func Logger() *logrus.Logger { return base }
