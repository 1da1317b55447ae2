// Package flog builds the process-wide logrus logger shared by every
// flintcore component. Packages never reach for logrus.StandardLogger()
// directly; they log through Default(component). No package accepts an
// injected *logrus.Entry; Or picks between an optional entry and Default.
package flog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if os.Getenv("FLINT_LOG_FORMAT") == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(os.Getenv("FLINT_LOG_LEVEL")); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// Default returns the process-wide entry, tagged with component.
func Default(component string) *logrus.Entry {
	return base.WithField("component", component)
}

// Or returns entry if non-nil, else Default(component).
func Or(entry *logrus.Entry, component string) *logrus.Entry {
	if entry != nil {
		return entry
	}
	return Default(component)
}
