// Package logging configures the process-wide logrus logger.
package logging

import (
	"github.com/sirupsen/logrus"
)

// New returns a logger at the requested level. Unrecognised levels fall back
// to info so a typo in config never silences the run.
func New(level string) *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}
