// Package logging hands out per-subsystem zap loggers. Logging is silent
// unless Initialize is called; components can always ask for their logger
// without caring whether one was configured.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a pipeline subsystem.
type Category string

const (
	CategoryRun      Category = "run"
	CategoryReplay   Category = "replay"
	CategoryFeatures Category = "features"
	CategoryJudge    Category = "judge"
	CategoryReport   Category = "report"
	CategoryStore    Category = "store"
	CategoryModel    Category = "model"
)

var (
	mu   sync.RWMutex
	root *zap.Logger = zap.NewNop()
)

// Initialize installs the process-wide logger. verbose raises the level to
// debug. Safe to call once at startup; callers holding loggers obtained
// earlier keep their no-op instances.
func Initialize(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	root = logger
	mu.Unlock()
	return nil
}

// Get returns the named sugared logger for a category.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Sugar().Named(string(category))
}

// Sync flushes buffered log entries. Call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
