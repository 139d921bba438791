package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates the process logger. Unknown levels fall back to info.
func New(level string) *logrus.Logger {
	return NewWithOutput(level, os.Stdout)
}

func NewWithOutput(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// Discard is used by tests that do not care about log output.
func Discard() *logrus.Logger {
	return NewWithOutput("panic", io.Discard)
}
