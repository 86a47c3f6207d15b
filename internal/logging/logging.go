// Package logging holds the logrus helpers shared by the server packages.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Discard is a logger which drops every entry.
var Discard logrus.FieldLogger = newDiscard()

func newDiscard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// Or returns logger, or Discard when logger is nil.
func Or(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger == nil {
		return Discard
	}
	return logger
}
