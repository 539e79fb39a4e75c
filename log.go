package trellis

import "github.com/sirupsen/logrus"

var logger = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLogger replaces the package logger. Passing nil restores the default,
// which writes info and above to stderr.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = newDefaultLogger()
	}
	logger = l
}

// Logger returns the package logger.
func Logger() *logrus.Logger {
	return logger
}

// componentLog returns an entry tagged with the component name.
func componentLog(name string) *logrus.Entry {
	return logger.WithField("component", name)
}
