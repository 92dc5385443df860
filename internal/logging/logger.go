// Package logging provides categorised, config-driven logging for autonomy.
// A single Logger is built at startup and handed to every component; each
// component asks for its category and gets a named zap logger back.
// Output goes to stderr and, when a file is configured, to a JSON log file
// under .autonomy/logs/ so the dashboard and operators can inspect it later.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup, config loading
	CategoryScheduler  Category = "scheduler"  // Loop cadence and cycles
	CategoryProducer   Category = "producer"   // Producer role
	CategoryValidator  Category = "validator"  // Validator role
	CategoryTuner      Category = "tuner"      // Tuner role
	CategoryQuality    Category = "quality"    // Quality role
	CategoryBacklog    Category = "backlog"    // Ledger reads/writes, watcher
	CategoryCheckpoint Category = "checkpoint" // Commit / revert
	CategoryTactile    Category = "tactile"    // Subprocess execution
	CategoryHistory    Category = "history"    // Cycle journal
)

// Config controls how the root logger is built.
type Config struct {
	Level      string          // debug, info, warn, error
	Format     string          // console, json
	File       string          // optional log file path
	Categories map[string]bool // per-category toggles; missing means enabled
	Quiet      bool            // suppress stderr output
}

// Logger is the root logger. It is safe for concurrent use.
type Logger struct {
	base       *zap.Logger
	categories map[string]bool
	file       *os.File

	mu    sync.Mutex
	named map[Category]*zap.Logger
}

// ParseLevel maps a config level string onto a zap level. Unknown values
// fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds the root logger from cfg.
func New(cfg Config) (*Logger, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if !cfg.Quiet {
		var enc zapcore.Encoder
		if strings.EqualFold(cfg.Format, "json") {
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			consoleCfg := encCfg
			consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
			enc = zapcore.NewConsoleEncoder(consoleCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}

	l := &Logger{
		categories: cfg.Categories,
		named:      make(map[Category]*zap.Logger),
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		l.file = f
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level))
	}

	if len(cores) == 0 {
		l.base = zap.NewNop()
	} else {
		l.base = zap.New(zapcore.NewTee(cores...))
	}
	return l, nil
}

// NewNop returns a logger that discards everything. Handy in tests.
func NewNop() *Logger {
	return Wrap(zap.NewNop())
}

// Wrap adapts an existing zap logger (e.g. zaptest or an observer core).
func Wrap(z *zap.Logger) *Logger {
	return &Logger{base: z, named: make(map[Category]*zap.Logger)}
}

// Enabled reports whether the category is switched on.
func (l *Logger) Enabled(category Category) bool {
	if l == nil {
		return false
	}
	if l.categories == nil {
		return true
	}
	enabled, ok := l.categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// For returns the named logger for a category. Disabled categories get a
// no-op logger so callers never need to check.
func (l *Logger) For(category Category) *zap.Logger {
	if l == nil || !l.Enabled(category) {
		return zap.NewNop()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if z, ok := l.named[category]; ok {
		return z
	}
	z := l.base.Named(string(category))
	l.named[category] = z
	return z
}

// Zap returns the uncategorised root logger.
func (l *Logger) Zap() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.base
}

// Close flushes buffered entries and releases the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.base.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Timer measures an operation and logs its duration when stopped.
type Timer struct {
	log   *zap.Logger
	op    string
	start time.Time
}

// StartTimer begins timing op.
func StartTimer(log *zap.Logger, op string) *Timer {
	return &Timer{log: log, op: op, start: time.Now()}
}

// Stop logs the elapsed time at debug and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.log != nil {
		t.log.Debug("operation finished", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
