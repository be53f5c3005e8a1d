package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The package holds one shared logger. It starts as a no-op so code paths
// that log before Init runs stay silent instead of crashing.
var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Init replaces the global logger with a production zap logger at the given
// level. Unrecognised level strings fall back to info.
func Init(level string) error {
	parsed, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	global = built
	mu.Unlock()
	return nil
}

// Logger returns the current global logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes buffered entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger tagged with the owning module, the
// convention every internal package uses for its log source.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}
