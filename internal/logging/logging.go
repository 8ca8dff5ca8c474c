// Package logging builds the process-wide logrus logger.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to out: JSON in production, text elsewhere.
// An unparseable level falls back to info.
func New(env, level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	if env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
