// Package logger is a thin, thread-safe wrapper around logrus giving the
// rest of the module a consistent Debug/Info/Warn/Error surface keyed by a
// field map, the way github.com/canonical/lxd/lxd/cluster logs.
package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Ctx is a set of structured fields attached to a log line.
type Ctx map[string]any

var (
	mu  sync.Mutex
	log = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	l.SetOutput(os.Stderr)
	return l
}

// SetLevel changes the package logger's minimum level ("debug", "info",
// "warn", "error").
func SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	log.SetLevel(parsed)
	return nil
}

// SetOutput redirects the package logger, e.g. to point logging at a file
// instead of stderr.
func SetOutput(f *os.File) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(f)
}

func entry(ctx Ctx) *logrus.Entry {
	mu.Lock()
	l := log
	mu.Unlock()
	return l.WithFields(logrus.Fields(ctx))
}

// Debug logs at debug level with structured context.
func Debug(msg string, ctx Ctx) { entry(ctx).Debug(msg) }

// Info logs at info level with structured context.
func Info(msg string, ctx Ctx) { entry(ctx).Info(msg) }

// Warn logs at warn level with structured context.
func Warn(msg string, ctx Ctx) { entry(ctx).Warn(msg) }

// Error logs at error level with structured context.
func Error(msg string, ctx Ctx) { entry(ctx).Error(msg) }

// Errorf logs a formatted message at error level with no extra context,
// matching call sites that only have a format string on hand.
func Errorf(format string, args ...any) {
	mu.Lock()
	l := log
	mu.Unlock()
	l.Errorf(format, args...)
}
