package neonfs

import (
	"github.com/sirupsen/logrus"
)

// log is the package logger. It defaults to warn level so the library
// stays quiet unless the host program opts in.
var log = func() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}()

// SetLogger replaces the package logger. Pass a logger configured by the
// host program; a nil logger is ignored.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}
