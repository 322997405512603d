// Package logger provides a small leveled, structured logging facade
// backed by logrus, matching the call shape used across the system:
// a short message plus an optional set of contextual fields.
package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Ctx is a set of contextual fields attached to a log line.
type Ctx map[string]interface{}

var (
	mu  sync.Mutex
	log = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel adjusts the minimum level emitted by the package logger.
func SetLevel(level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	log.SetLevel(level)
}

// SetOutput redirects log output, mainly useful for tests.
func SetOutput(w interface {
	Write([]byte) (int, error)
}) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(w)
}

func entry(ctx Ctx) *logrus.Entry {
	mu.Lock()
	l := log
	mu.Unlock()
	if len(ctx) == 0 {
		return logrus.NewEntry(l)
	}
	return l.WithFields(logrus.Fields(ctx))
}

func Debug(msg string, ctx Ctx) { entry(ctx).Debug(msg) }
func Info(msg string, ctx Ctx)  { entry(ctx).Info(msg) }
func Warn(msg string, ctx Ctx)  { entry(ctx).Warn(msg) }
func Error(msg string, ctx Ctx) { entry(ctx).Error(msg) }

func Debugf(format string, args ...interface{}) { entry(nil).Debugf(format, args...) }
func Infof(format string, args ...interface{})  { entry(nil).Infof(format, args...) }
func Warnf(format string, args ...interface{})  { entry(nil).Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { entry(nil).Errorf(format, args...) }
