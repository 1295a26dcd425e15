package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var root = logrus.New()

func init() {
	root.SetOutput(os.Stdout)
	root.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		root.SetLevel(lvl)
	}
}

// WithComponent returns an entry scoped to a named component, e.g.
// logger.WithComponent("RecurrenceEngine").Info("series created").
func WithComponent(name string) *logrus.Entry {
	return root.WithField("component", name)
}
